package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/parlorgames/parlor-backend/internal/handlers"
	"github.com/parlorgames/parlor-backend/internal/router"
)

type Server struct {
	port    int
	router  *router.Router
	service *handlers.Service
}

// New builds the HTTP server hosting the websocket endpoint and the small
// REST surface around it.
func New(port int, rt *router.Router, service *handlers.Service) *http.Server {
	s := &Server{
		port:    port,
		router:  rt,
		service: service,
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
