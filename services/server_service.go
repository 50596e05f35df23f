// services/server_service.go
package services

import (
	"context"
	"errors"
	"math"
	"time"

	"crystaltides-web/constants"
	"crystaltides-web/mcping"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	resourcesCacheKey = "server:resources"
	statusCacheKey    = "server:status"
)

// ServerService reports panel resources and the live server list status.
type ServerService struct {
	Panel   PanelAPI
	Plugins PluginSource
	Probe   PresenceProbe
	Cache   Cache
	log     zerolog.Logger
}

func NewServerService(panel PanelAPI, plugins PluginSource, probe PresenceProbe, cache Cache, log zerolog.Logger) *ServerService {
	return &ServerService{
		Panel:   panel,
		Plugins: plugins,
		Probe:   probe,
		Cache:   cache,
		log:     log.With().Str("component", "server").Logger(),
	}
}

type Usage struct {
	Current int64 `json:"current"`
	Limit   int64 `json:"limit"`
}

type ServerResources struct {
	Status             string  `json:"status"`
	Memory             Usage   `json:"memory"`
	CPU                float64 `json:"cpu"`
	Disk               Usage   `json:"disk"`
	Online             int64   `json:"online"`
	TotalPlayers       int64   `json:"total_players"`
	NewPlayers         int64   `json:"new_players"`
	TotalPlaytimeHours int64   `json:"total_playtime_hours"`
}

type LivePlayers struct {
	Online int      `json:"online"`
	Max    int      `json:"max"`
	Sample []string `json:"sample"`
}

type LiveStatus struct {
	Online  bool        `json:"online"`
	MOTD    string      `json:"motd"`
	Version string      `json:"version"`
	Players LivePlayers `json:"players"`
	Icon    string      `json:"icon,omitempty"`
	Latency int64       `json:"latency"`
}

func offlineStatus() *LiveStatus {
	return &LiveStatus{Players: LivePlayers{Sample: []string{}}}
}

func toMB(bytes int64) int64 {
	return bytes / (1024 * 1024)
}

func cpuPercent(absolute, limit float64) float64 {
	if limit <= 0 {
		return absolute
	}
	return math.Round(absolute/limit*1000) / 10
}

// Resources merges the panel's live usage and limits with Plan statistics.
// Each source is fetched in parallel and degrades on its own.
func (s *ServerService) Resources(ctx context.Context) (*ServerResources, error) {
	if s.Panel == nil {
		return nil, errors.New("panel credentials are not configured")
	}
	if s.Cache != nil {
		var cached ServerResources
		if ok, err := s.Cache.GetJSON(ctx, resourcesCacheKey, &cached); err == nil && ok {
			return &cached, nil
		}
	}

	var (
		usage   *PanelResources
		details *PanelDetails
		stats   *PlanStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.Panel.Resources(gctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("panel resources unavailable")
			return nil
		}
		usage = r
		return nil
	})
	g.Go(func() error {
		d, err := s.Panel.Details(gctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("panel details unavailable")
			return nil
		}
		details = d
		return nil
	})
	if s.Plugins != nil {
		g.Go(func() error {
			st, err := s.Plugins.GlobalStats(gctx, time.Now().Add(-24*time.Hour))
			if err != nil {
				s.log.Warn().Err(err).Msg("plan statistics unavailable")
				return nil
			}
			stats = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &ServerResources{Status: "offline"}
	var cpuLimit float64
	if details != nil {
		out.Memory.Limit = details.Limits.Memory
		out.Disk.Limit = details.Limits.Disk
		cpuLimit = details.Limits.CPU
	}
	if usage != nil {
		out.Status = usage.CurrentState
		out.Memory.Current = toMB(usage.Resources.MemoryBytes)
		out.Disk.Current = toMB(usage.Resources.DiskBytes)
		out.CPU = cpuPercent(usage.Resources.CPUAbsolute, cpuLimit)
	}
	if stats != nil {
		out.Online = stats.Online
		out.TotalPlayers = stats.TotalPlayers
		out.NewPlayers = stats.NewPlayers
		out.TotalPlaytimeHours = stats.TotalPlaytimeHours
	}

	if s.Cache != nil {
		if err := s.Cache.SetJSON(ctx, resourcesCacheKey, out, constants.ResourcesCacheTTL); err != nil {
			s.log.Warn().Err(err).Msg("failed to cache resources")
		}
	}
	return out, nil
}

// RefreshStatus probes the server and stores the result. It never fails; an
// unreachable server yields the offline shape.
func (s *ServerService) RefreshStatus(ctx context.Context) *LiveStatus {
	status := offlineStatus()
	if s.Probe != nil {
		pctx, cancel := context.WithTimeout(ctx, constants.LiveStatusProbeTimeout)
		st, err := s.Probe.Probe(pctx)
		cancel()
		if err != nil {
			s.log.Debug().Err(err).Msg("server list ping failed")
		} else {
			status = liveFromPing(st)
		}
	}

	if s.Cache != nil {
		if err := s.Cache.SetJSON(ctx, statusCacheKey, status, constants.StatusCacheTTL); err != nil {
			s.log.Warn().Err(err).Msg("failed to cache live status")
		}
	}
	return status
}

func liveFromPing(st *mcping.Status) *LiveStatus {
	sample := st.Sample
	if sample == nil {
		sample = []string{}
	}
	return &LiveStatus{
		Online:  st.Online,
		MOTD:    st.MOTD,
		Version: st.Version,
		Players: LivePlayers{Online: st.PlayersOnline, Max: st.PlayersMax, Sample: sample},
		Icon:    st.Favicon,
		Latency: st.Latency.Milliseconds(),
	}
}

// Live serves the cached status, probing on a miss.
func (s *ServerService) Live(ctx context.Context) *LiveStatus {
	if s.Cache != nil {
		var cached LiveStatus
		if ok, err := s.Cache.GetJSON(ctx, statusCacheKey, &cached); err == nil && ok {
			return &cached
		}
	}
	return s.RefreshStatus(ctx)
}

// GetResources handles GET /api/server/resources.
func (s *ServerService) GetResources(c *fiber.Ctx) error {
	res, err := s.Resources(c.UserContext())
	if err != nil {
		return respondError(c, s.log, err)
	}
	return c.JSON(res)
}

// GetLiveStatus handles GET /api/server/status/live.
func (s *ServerService) GetLiveStatus(c *fiber.Ctx) error {
	return c.JSON(s.Live(c.UserContext()))
}
