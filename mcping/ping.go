// Package mcping queries a Minecraft Java Edition server's status.
package mcping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/Tnze/go-mc/bot"
	"github.com/Tnze/go-mc/chat"
)

var ErrMalformed = errors.New("malformed status response")

// Status is the decoded answer to a status request.
type Status struct {
	Online        bool          `json:"online"`
	Version       string        `json:"version"`
	Protocol      int           `json:"protocol"`
	PlayersOnline int           `json:"players_online"`
	PlayersMax    int           `json:"players_max"`
	Sample        []string      `json:"sample"`
	MOTD          string        `json:"motd"`
	Favicon       string        `json:"favicon,omitempty"`
	Latency       time.Duration `json:"latency"`
}

type rawStatus struct {
	Version struct {
		Name     string `json:"name"`
		Protocol int    `json:"protocol"`
	} `json:"version"`
	Players struct {
		Max    int `json:"max"`
		Online int `json:"online"`
		Sample []struct {
			Name string `json:"name"`
			ID   string `json:"id"`
		} `json:"sample"`
	} `json:"players"`
	Description chat.Message `json:"description"`
	Favicon     string       `json:"favicon"`
}

// Ping queries host:port. The context deadline bounds the whole exchange.
func Ping(ctx context.Context, host string, port int) (*Status, error) {
	address := net.JoinHostPort(host, strconv.Itoa(port))

	body, latency, err := bot.PingAndListContext(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("pinging %s: %w", address, err)
	}

	status, err := decodeStatus(body)
	if err != nil {
		return nil, err
	}
	status.Latency = latency
	return status, nil
}

func decodeStatus(body []byte) (*Status, error) {
	var raw rawStatus
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	status := &Status{
		Online:        true,
		Version:       raw.Version.Name,
		Protocol:      raw.Version.Protocol,
		PlayersOnline: raw.Players.Online,
		PlayersMax:    raw.Players.Max,
		Sample:        make([]string, 0, len(raw.Players.Sample)),
		MOTD:          strings.TrimSpace(raw.Description.ClearString()),
		Favicon:       raw.Favicon,
	}
	for _, p := range raw.Players.Sample {
		if p.Name != "" {
			status.Sample = append(status.Sample, p.Name)
		}
	}
	return status, nil
}
