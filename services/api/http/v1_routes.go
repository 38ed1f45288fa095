package http

// registerV1Routes sets up the v1 API structure.
// Write path: /api/v1/ingest (authenticated), /api/v1/register.
// Read path: aggregate queries consumed by the dashboard and notifier.
func (s *Server) registerV1Routes() {
	v1 := s.engine.Group("/api/v1")

	v1.POST("/ingest", s.apiKeyMiddleware(), s.handleV1Ingest)
	v1.POST("/register", s.handleV1Register)

	v1.GET("/latest", s.handleV1Latest)
	v1.GET("/averages", s.handleV1Averages)
	v1.GET("/top", s.handleV1Top)
	v1.GET("/stations", s.handleV1Stations)
}
