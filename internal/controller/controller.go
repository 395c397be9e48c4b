package controller

import (
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/r0lh/uiinject/injector"
	"github.com/r0lh/uiinject/internal/channel"
	"github.com/r0lh/uiinject/internal/config"
	"github.com/r0lh/uiinject/internal/dispatch"
)

// Controller keeps one client per target pid.
type Controller struct {
	Config    config.Config
	Dial      channel.DialFunc
	Processes ProcessLister
	Modules   injector.ModuleLister
	Logger    *slog.Logger

	mu      sync.Mutex
	clients map[uint32]*Client
}

// New returns a Controller wired to the system pipe and process APIs.
func New(cfg config.Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{
		Config:    cfg,
		Dial:      channel.Dial,
		Processes: DefaultProcesses(),
		Modules:   injector.DefaultModules(),
		Logger:    logger,
		clients:   map[uint32]*Client{},
	}
}

// EndpointName is the configured prefix followed by pid.
func (c *Controller) EndpointName(pid uint32) string {
	return c.Config.PipePrefix + strconv.FormatUint(uint64(pid), 10)
}

// Targets lists processes with the agent loaded.
func (c *Controller) Targets() ([]Target, error) {
	return Discover(c.Processes, c.Modules, c.Config.AgentName)
}

// Connect opens clients for pids that have none yet. With no pids it
// connects to every discovered target. Failures are logged and skipped;
// the number of open clients is returned.
func (c *Controller) Connect(pids ...uint32) (int, error) {
	if len(pids) == 0 {
		targets, err := c.Targets()
		if err != nil {
			return 0, errors.Wrap(err, "discover targets")
		}
		for _, t := range targets {
			pids = append(pids, t.Pid)
		}
	}

	for _, pid := range pids {
		if _, err := c.client(pid); err != nil {
			c.Logger.Warn("connect failed", "pid", pid, "err", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients), nil
}

func (c *Controller) client(pid uint32) (*Client, error) {
	c.mu.Lock()
	cl, ok := c.clients[pid]
	c.mu.Unlock()
	if ok {
		return cl, nil
	}

	name := c.EndpointName(pid)
	cl, err := Connect(c.Dial, pid, name, c.Config.ConnectTimeout, c.Config.RetryInterval)
	if err != nil {
		return nil, err
	}
	c.Logger.Info("connected", "pid", pid, "endpoint", name)

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.clients[pid]; ok {
		_ = cl.Close()
		return existing, nil
	}
	c.clients[pid] = cl
	return cl, nil
}

func (c *Controller) drop(pid uint32) {
	c.mu.Lock()
	cl, ok := c.clients[pid]
	delete(c.clients, pid)
	c.mu.Unlock()
	if ok {
		_ = cl.Close()
	}
}

// Pids returns the connected pids in ascending order.
func (c *Controller) Pids() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uint32, 0, len(c.clients))
	for pid := range c.clients {
		out = append(out, pid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Broadcast sends cmd to every connected client. Clients whose write
// fails are closed and removed. It returns the pids that got the frame.
func (c *Controller) Broadcast(cmd string) ([]uint32, error) {
	pids := c.Pids()
	if len(pids) == 0 {
		return nil, ErrNoTargets
	}

	var sent []uint32
	for _, pid := range pids {
		c.mu.Lock()
		cl := c.clients[pid]
		c.mu.Unlock()
		if cl == nil {
			continue
		}
		if err := cl.Send(cmd); err != nil {
			c.Logger.Warn("send failed, dropping client", "pid", pid, "err", err)
			c.drop(pid)
			continue
		}
		sent = append(sent, pid)
	}
	if len(sent) == 0 {
		return nil, errors.Wrap(ErrNoTargets, "every send failed")
	}
	return sent, nil
}

// Send delivers cmd to pid, connecting first when needed. A failed write
// drops the client.
func (c *Controller) Send(pid uint32, cmd string) error {
	cl, err := c.client(pid)
	if err != nil {
		return err
	}
	if err := cl.Send(cmd); err != nil {
		c.drop(pid)
		return err
	}
	return nil
}

func (c *Controller) sendOrBroadcast(pid uint32, cmd string) ([]uint32, error) {
	if pid == 0 {
		return c.Broadcast(cmd)
	}
	if err := c.Send(pid, cmd); err != nil {
		return nil, err
	}
	return []uint32{pid}, nil
}

// TypeText sends a TYPE command to pid, or to every client when pid is 0.
func (c *Controller) TypeText(pid uint32, text string) ([]uint32, error) {
	return c.sendOrBroadcast(pid, dispatch.PrefixType+text)
}

// ActivateMenu sends a MENU command to pid, or to every client when pid
// is 0.
func (c *Controller) ActivateMenu(pid uint32, id int) ([]uint32, error) {
	return c.sendOrBroadcast(pid, dispatch.PrefixMenu+strconv.Itoa(id))
}

// QueryInfo asks pid for its main window.
func (c *Controller) QueryInfo(pid uint32) (Reply, error) {
	cl, err := c.client(pid)
	if err != nil {
		return Reply{}, err
	}
	r, err := cl.Query()
	if err != nil {
		c.drop(pid)
		return Reply{}, err
	}
	return r, nil
}

// Close closes every client.
func (c *Controller) Close() {
	c.mu.Lock()
	clients := c.clients
	c.clients = map[uint32]*Client{}
	c.mu.Unlock()

	for pid, cl := range clients {
		if err := cl.Close(); err != nil {
			c.Logger.Debug("close failed", "pid", pid, "err", err)
		}
	}
}
