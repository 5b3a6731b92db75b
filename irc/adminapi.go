package irc

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StartAdminServer starts the HTTP admin API. It serves read-only
// introspection of the module system plus the Prometheus registry.
func (s *Server) StartAdminServer() error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	e.GET("/api/stats", s.apiStats)
	e.GET("/api/modules", s.apiModules)
	e.GET("/api/modes", s.apiModes)
	e.GET("/api/clients", s.apiClients)
	e.GET("/api/channels", s.apiChannels)
	e.GET("/api/links", s.apiLinks)
	e.POST("/api/rehash", s.apiRehash)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})))

	s.Lock()
	s.adminEcho = e
	s.Unlock()

	go func() {
		if err := e.Start(s.Config.AdminBindAddr); err != nil && err != http.ErrServerClosed {
			s.Log(LogDefault, fmt.Sprintf("Admin server stopped: %v", err))
		}
	}()
	return nil
}

// StopAdminServer stops the HTTP admin API if it is running.
func (s *Server) StopAdminServer() {
	s.Lock()
	e := s.adminEcho
	s.adminEcho = nil
	s.Unlock()

	if e != nil {
		e.Close()
	}
}

func (s *Server) apiStats(c echo.Context) error {
	s.stats.RLock()
	defer s.stats.RUnlock()

	s.RLock()
	clients := len(s.clients)
	channels := len(s.channels)
	s.RUnlock()

	return c.JSON(http.StatusOK, map[string]interface{}{
		"server":           s.Config.ServerName,
		"network":          s.Config.NetworkName,
		"uptime_seconds":   int(time.Since(s.stats.StartTime).Seconds()),
		"clients":          clients,
		"channels":         channels,
		"connection_count": s.stats.ConnectionCount,
		"max_connections":  s.stats.MaxConnections,
		"ban_hits":         s.stats.BanHits,
		"modules":          s.modules.Count(),
	})
}

func (s *Server) apiModules(c echo.Context) error {
	type moduleInfo struct {
		Origin  string `json:"origin"`
		Version string `json:"version"`
	}

	mods := s.modules.Modules()
	out := make([]moduleInfo, 0, len(mods))
	for _, m := range mods {
		v := m.GetVersion()
		out = append(out, moduleInfo{
			Origin:  s.ModuleOrigin(m),
			Version: fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Revision, v.Build),
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) apiModes(c echo.Context) error {
	type modeInfo struct {
		Letter    string `json:"letter"`
		Scope     string `json:"scope"`
		ParamsOn  int    `json:"params_on"`
		ParamsOff int    `json:"params_off"`
		Owner     string `json:"owner"`
	}

	claims := s.extModes.Claims()
	out := make([]modeInfo, 0, len(claims))
	for _, claim := range claims {
		out = append(out, modeInfo{
			Letter:    string(claim.Letter),
			Scope:     claim.Scope.String(),
			ParamsOn:  claim.ParamsOn,
			ParamsOff: claim.ParamsOff,
			Owner:     s.ModuleOrigin(claim.Owner),
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) apiClients(c echo.Context) error {
	s.RLock()
	defer s.RUnlock()

	nicks := make([]string, 0, len(s.clients))
	for nick := range s.clients {
		nicks = append(nicks, nick)
	}
	return c.JSON(http.StatusOK, nicks)
}

func (s *Server) apiChannels(c echo.Context) error {
	type channelInfo struct {
		Name    string `json:"name"`
		Members int    `json:"members"`
		Topic   string `json:"topic"`
	}

	s.RLock()
	channels := make([]*Channel, 0, len(s.channels))
	for _, channel := range s.channels {
		channels = append(channels, channel)
	}
	s.RUnlock()

	out := make([]channelInfo, 0, len(channels))
	for _, channel := range channels {
		out = append(out, channelInfo{
			Name:    channel.Name(),
			Members: channel.MemberCount(),
			Topic:   channel.Topic(),
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) apiLinks(c echo.Context) error {
	return c.JSON(http.StatusOK, s.links.Names())
}

func (s *Server) apiRehash(c echo.Context) error {
	if err := s.Rehash(); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "rehashed"})
}
