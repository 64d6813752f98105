package http

import (
	"net/http"

	"github.com/bookineo/bookineo/pkg/httputil"
	"github.com/bookineo/bookineo/pkg/subscription"
)

// ListPlans handles GET /api/v1/plans.
func ListPlans(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteData(w, http.StatusOK, subscription.Plans())
}
