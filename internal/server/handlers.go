// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pdiddy/medref/internal/search"
	"github.com/pdiddy/medref/internal/session"
	"github.com/pdiddy/medref/pkg/types"
)

// libraryIDHeader reports the library id of a saved aggregate response.
const libraryIDHeader = "X-Library-ID"

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Target   string `json:"target"`
}

type searchRequest struct {
	Query           string   `json:"query" binding:"required"`
	MaxResults      int      `json:"max_results"`
	IncludeDomains  []string `json:"include_domains"`
	PerplexityModel string   `json:"perplexity_model"`
	General         bool     `json:"general"`

	// Save files an aggregate response in the library.
	Save bool `json:"save"`
}

func (r searchRequest) options() search.Options {
	return search.Options{
		Model:   search.PerplexityModel(r.PerplexityModel),
		General: r.General,
		Domains: r.IncludeDomains,
	}
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

// statusFor maps a provider error to the HTTP status returned to callers.
func statusFor(err error) int {
	if errors.Is(err, search.ErrUnknownProvider) {
		return http.StatusNotFound
	}
	switch search.KindOf(err) {
	case search.KindConfig:
		return http.StatusBadRequest
	case search.KindAuth:
		return http.StatusUnauthorized
	case search.KindUpstream:
		return http.StatusBadGateway
	case search.KindTransport:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) health(c *gin.Context) {
	providers := make(map[types.ProviderName]bool, len(s.aggregator.Providers))
	for _, p := range s.aggregator.Providers {
		providers[p.Name()] = p.Ready()
	}

	body := gin.H{
		"status":    "ok",
		"providers": providers,
	}
	if s.pool != nil {
		sessions := s.pool.Status()
		body["sessions"] = sessions
		body["uptodate_logged_in"] = sessions[session.TargetUpToDate]
		body["mksap_logged_in"] = sessions[session.TargetMKSAP]
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Target == "" {
		req.Target = string(session.TargetUpToDate)
	}

	target, err := session.ParseTarget(req.Target)
	if err != nil || s.pool == nil {
		fail(c, http.StatusBadRequest, fmt.Sprintf("Unknown target: %s", req.Target))
		return
	}

	creds := types.Credentials{Username: req.Username, Password: req.Password}
	if !s.pool.Login(c.Request.Context(), target, creds) {
		fail(c, http.StatusUnauthorized, "Login failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_in", "target": target})
}

func (s *Server) logout(c *gin.Context) {
	var req struct {
		Target string `json:"target" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	target, err := session.ParseTarget(req.Target)
	if err != nil || s.pool == nil {
		fail(c, http.StatusBadRequest, fmt.Sprintf("Unknown target: %s", req.Target))
		return
	}
	if err := s.pool.Logout(c.Request.Context(), target); err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out", "target": target})
}

func (s *Server) searchOne(c *gin.Context) {
	name := types.ProviderName(c.Param("provider"))
	if !name.Valid() {
		fail(c, http.StatusNotFound, fmt.Sprintf("Unknown provider: %s", name))
		return
	}

	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.aggregator.SearchOne(c.Request.Context(), name, req.Query, req.MaxResults, req.options())
	if err != nil {
		fail(c, statusFor(err), err.Error())
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) aggregate(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	resp := s.aggregator.Aggregate(c.Request.Context(), req.Query, req.MaxResults, req.options())

	if req.Save {
		if s.library == nil {
			s.logger.Warn("save requested but no library is configured")
		} else if id, err := s.library.Save(c.Request.Context(), resp); err != nil {
			s.logger.Warn("saving response failed", zap.String("query", req.Query), zap.Error(err))
		} else {
			c.Header(libraryIDHeader, id)
		}
	}
	c.JSON(http.StatusOK, resp)
}
