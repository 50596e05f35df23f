package services

import (
	"context"

	"crystaltides-web/mcping"
)

// PresenceProbe reports whether the game server is up and who is on it.
type PresenceProbe interface {
	Probe(ctx context.Context) (*mcping.Status, error)
}

type ServerListProbe struct {
	Host string
	Port int
}

func NewServerListProbe(host string, port int) *ServerListProbe {
	return &ServerListProbe{Host: host, Port: port}
}

func (p *ServerListProbe) Probe(ctx context.Context) (*mcping.Status, error) {
	return mcping.Ping(ctx, p.Host, p.Port)
}
