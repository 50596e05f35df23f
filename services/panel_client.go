package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"crystaltides-web/constants"

	"github.com/valyala/fasthttp"
)

// PanelAPI is the slice of the Pterodactyl client API the site uses.
type PanelAPI interface {
	Resources(ctx context.Context) (*PanelResources, error)
	Details(ctx context.Context) (*PanelDetails, error)
	SendCommand(ctx context.Context, command string) error
}

type PanelResources struct {
	CurrentState string `json:"current_state"`
	Resources    struct {
		MemoryBytes int64   `json:"memory_bytes"`
		CPUAbsolute float64 `json:"cpu_absolute"`
		DiskBytes   int64   `json:"disk_bytes"`
		NetworkRx   int64   `json:"network_rx_bytes"`
		NetworkTx   int64   `json:"network_tx_bytes"`
		Uptime      int64   `json:"uptime"`
	} `json:"resources"`
}

type PanelDetails struct {
	Name   string `json:"name"`
	Limits struct {
		Memory int64   `json:"memory"`
		CPU    float64 `json:"cpu"`
		Disk   int64   `json:"disk"`
	} `json:"limits"`
}

type panelEnvelope[T any] struct {
	Attributes T `json:"attributes"`
}

type PanelClient struct {
	host     string
	apiKey   string
	serverID string
	client   *fasthttp.Client
}

func NewPanelClient(host, apiKey, serverID string) *PanelClient {
	return &PanelClient{
		host:     strings.TrimRight(host, "/"),
		apiKey:   apiKey,
		serverID: serverID,
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         constants.PanelTimeout,
			WriteTimeout:        constants.PanelTimeout,
			MaxIdleConnDuration: time.Minute,
		},
	}
}

func (p *PanelClient) serverURL(suffix string) string {
	return fmt.Sprintf("%s/api/client/servers/%s%s", p.host, p.serverID, suffix)
}

func (p *PanelClient) Resources(ctx context.Context) (*PanelResources, error) {
	env, err := panelRequest[panelEnvelope[PanelResources]](ctx, p, fasthttp.MethodGet, p.serverURL("/resources"), nil)
	if err != nil {
		return nil, err
	}
	return &env.Attributes, nil
}

func (p *PanelClient) Details(ctx context.Context) (*PanelDetails, error) {
	env, err := panelRequest[panelEnvelope[PanelDetails]](ctx, p, fasthttp.MethodGet, p.serverURL(""), nil)
	if err != nil {
		return nil, err
	}
	return &env.Attributes, nil
}

// SendCommand runs a console command on the server.
func (p *PanelClient) SendCommand(ctx context.Context, command string) error {
	body, err := json.Marshal(map[string]string{"command": command})
	if err != nil {
		return err
	}
	_, err = panelRequest[struct{}](ctx, p, fasthttp.MethodPost, p.serverURL("/command"), body)
	return err
}

func panelRequest[T any](ctx context.Context, p *PanelClient, method, url string, body []byte) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(constants.PanelTimeout)
	}
	if err := p.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("%w: panel request: %v", ErrUpstream, err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: panel returned %d", ErrUpstream, status)
	}

	var result T
	if len(resp.Body()) == 0 {
		return &result, nil
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("%w: decoding panel response: %v", ErrUpstream, err)
	}
	return &result, nil
}
