package httpx

import (
	"io"
	"net/http"
)

const healthResponse = `{"status":"ok","service":"oerms-auth"}`

// healthHandler answers readiness/liveness probes. It deliberately touches no
// store: a degraded Redis must not flap the pod while sessions degrade
// gracefully.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}
