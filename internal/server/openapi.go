package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Kind  string `json:"kind,omitempty"`
	Error string `json:"error"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "PanoGuess API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the PanoGuess geo-guessing game.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /api/me
	getMe, _ := r.NewOperationContext(http.MethodGet, "/api/me")
	getMe.SetSummary("Current player")
	getMe.SetDescription("Returns the authenticated player's profile, stats, and quota. Requires Bearer token.")
	getMe.AddRespStructure(MeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getMe.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getMe)

	// POST /api/rounds
	postRound, _ := r.NewOperationContext(http.MethodPost, "/api/rounds")
	postRound.SetSummary("Start round")
	postRound.SetDescription("Consumes one daily move and starts a round against a fresh panorama. Requires Bearer token.")
	postRound.AddRespStructure(StartRoundResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	postRound.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	postRound.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postRound.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusTooManyRequests))
	postRound.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postRound)

	// POST /api/rounds/{roundID}/guess
	postGuess, _ := r.NewOperationContext(http.MethodPost, "/api/rounds/{roundID}/guess")
	postGuess.SetSummary("Submit guess")
	postGuess.SetDescription("Places the guess for an active round. Past the deadline the round expires instead of scoring. Requires Bearer token.")
	postGuess.AddReqStructure(struct {
		RoundID string `path:"roundID"`
	}{})
	postGuess.AddReqStructure(GuessRequest{})
	postGuess.AddRespStructure(GuessResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postGuess.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	postGuess.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	postGuess.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postGuess.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnprocessableEntity))
	_ = r.AddOperation(postGuess)

	// GET /api/leaderboard
	getBoard, _ := r.NewOperationContext(http.MethodGet, "/api/leaderboard")
	getBoard.SetSummary("Leaderboard")
	getBoard.SetDescription("Returns one ranked page of player standings. Requires Bearer token.")
	getBoard.AddRespStructure(LeaderboardResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getBoard.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	getBoard.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnprocessableEntity))
	_ = r.AddOperation(getBoard)

	// POST /api/admin/login
	postLogin, _ := r.NewOperationContext(http.MethodPost, "/api/admin/login")
	postLogin.SetSummary("Admin login")
	postLogin.SetDescription("Authenticate with email and password. Sets admin_session cookie.")
	postLogin.AddReqStructure(AdminLoginRequest{})
	postLogin.AddRespStructure(AdminMeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postLogin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postLogin)

	// POST /api/admin/logout
	postLogout, _ := r.NewOperationContext(http.MethodPost, "/api/admin/logout")
	postLogout.SetSummary("Admin logout")
	postLogout.SetDescription("Clears admin session and cookie.")
	postLogout.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(postLogout)

	// GET /api/admin/me
	getAdminMe, _ := r.NewOperationContext(http.MethodGet, "/api/admin/me")
	getAdminMe.SetSummary("Current admin")
	getAdminMe.SetDescription("Returns the currently authenticated admin. Requires admin_session cookie.")
	getAdminMe.AddRespStructure(AdminMeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getAdminMe.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getAdminMe)

	// GET /api/admin/locations
	listLocations, _ := r.NewOperationContext(http.MethodGet, "/api/admin/locations")
	listLocations.SetSummary("List locations")
	listLocations.SetDescription("Returns all locations with difficulty aggregates. Requires admin_session cookie.")
	listLocations.AddRespStructure([]AdminLocationItem{}, openapi.WithHTTPStatus(http.StatusOK))
	listLocations.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(listLocations)

	// POST /api/admin/locations
	createLocation, _ := r.NewOperationContext(http.MethodPost, "/api/admin/locations")
	createLocation.SetSummary("Create location")
	createLocation.SetDescription("Registers a panorama with its true coordinate. Requires admin_session cookie.")
	createLocation.AddReqStructure(AdminLocationRequest{})
	createLocation.AddRespStructure(AdminLocationItem{}, openapi.WithHTTPStatus(http.StatusCreated))
	createLocation.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	createLocation.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(createLocation)

	// GET /api/admin/locations/{id}
	getLocation, _ := r.NewOperationContext(http.MethodGet, "/api/admin/locations/{id}")
	getLocation.SetSummary("Get location")
	getLocation.SetDescription("Returns one location with difficulty aggregates. Requires admin_session cookie.")
	getLocation.AddReqStructure(struct {
		ID string `path:"id"`
	}{})
	getLocation.AddRespStructure(AdminLocationItem{}, openapi.WithHTTPStatus(http.StatusOK))
	getLocation.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	getLocation.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getLocation)

	// DELETE /api/admin/locations/{id}
	deleteLocation, _ := r.NewOperationContext(http.MethodDelete, "/api/admin/locations/{id}")
	deleteLocation.SetSummary("Delete location")
	deleteLocation.SetDescription("Removes a location from rotation. Requires admin_session cookie.")
	deleteLocation.AddReqStructure(struct {
		ID string `path:"id"`
	}{})
	deleteLocation.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	deleteLocation.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	deleteLocation.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(deleteLocation)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, err := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write(data)
	}
}
