package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"longbox/internal/app"
	"longbox/internal/config"
	"longbox/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.configPath = resolved
		c.configExists = exists
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withApp assembles the full service graph for an in-process command and
// tears it down afterwards. CLI commands log at warn level so pipeline
// chatter does not drown the command output.
func (c *commandContext) withApp(fn func(*app.App) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Level: "warn", Format: cfg.Logging.Format})
	if err != nil {
		return err
	}
	a, err := app.Build(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// apiGet fetches a daemon API endpoint and decodes the JSON response into
// out.
func (c *commandContext) apiGet(path string, out any) error {
	return c.apiCall(http.MethodGet, path, out)
}

// apiPost posts to a daemon API endpoint.
func (c *commandContext) apiPost(path string, out any) error {
	return c.apiCall(http.MethodPost, path, out)
}

func (c *commandContext) apiCall(method, path string, out any) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return fmt.Errorf("api_bind is not configured; the daemon API is disabled")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequest(method, "http://"+bind+path, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("connect to daemon at %s: %w (is the daemon running?)", bind, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(bytes.NewReader(body)).Decode(out)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
