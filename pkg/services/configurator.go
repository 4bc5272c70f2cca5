package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/autoclaw/autoclaw-backend/internal/logger"
)

// RemoteSession executes commands on a droplet over an authenticated
// channel.
type RemoteSession interface {
	Run(ctx context.Context, cmd string) (string, error)
	Close() error
}

// DialFunc opens a RemoteSession to a droplet IP. Each attempt stands
// alone; session-readiness polling retries the dial itself.
type DialFunc func(ctx context.Context, ip string) (RemoteSession, error)

// featureFlags is the full set of clawdbot features switched on for
// every deployment so the dashboard can manage channels itself. Each
// entry is applied as a remove-then-append on the env file, so re-runs
// converge to the same file content.
var featureFlags = [][2]string{
	// Web login and dashboard
	{"WEB_LOGIN_ENABLED", "true"},
	{"ENABLE_WEB_CHANNEL_LOGIN", "true"},
	{"DASHBOARD_ENABLED", "true"},
	{"WEB_UI_ENABLED", "true"},

	// WhatsApp
	{"WHATSAPP_ENABLED", "true"},
	{"WHATSAPP_WEB_ENABLED", "true"},
	{"WHATSAPP_QR_LOGIN", "true"},

	// Telegram
	{"TELEGRAM_ENABLED", "true"},
	{"TELEGRAM_WEB_LOGIN", "true"},

	// Discord
	{"DISCORD_ENABLED", "true"},
	{"DISCORD_WEB_LOGIN", "true"},

	// Slack
	{"SLACK_ENABLED", "true"},
	{"SLACK_WEB_LOGIN", "true"},

	// Other messaging platforms
	{"SIGNAL_ENABLED", "true"},
	{"MATRIX_ENABLED", "true"},
	{"IRC_ENABLED", "true"},

	// Email
	{"EMAIL_ENABLED", "true"},
	{"GMAIL_ENABLED", "true"},
	{"SMTP_ENABLED", "true"},
	{"IMAP_ENABLED", "true"},

	// Productivity integrations
	{"GITHUB_ENABLED", "true"},
	{"NOTION_ENABLED", "true"},
	{"GOOGLE_CALENDAR_ENABLED", "true"},
	{"GOOGLE_DRIVE_ENABLED", "true"},

	// AI features
	{"WEB_BROWSING_ENABLED", "true"},
	{"FILE_ACCESS_ENABLED", "true"},
	{"CODE_EXECUTION_ENABLED", "true"},
	{"AUTONOMOUS_MODE_ENABLED", "true"},

	// MCP servers
	{"MCP_ENABLED", "true"},
	{"MCP_FILESYSTEM_ENABLED", "true"},
	{"MCP_BROWSER_ENABLED", "true"},
	{"MCP_GITHUB_ENABLED", "true"},

	// Everything else
	{"WEBHOOKS_ENABLED", "true"},
	{"API_ACCESS_ENABLED", "true"},
	{"SCHEDULED_TASKS_ENABLED", "true"},
	{"VOICE_ENABLED", "true"},
	{"IMAGE_GENERATION_ENABLED", "true"},
}

// Configurator drives the clawdbot appliance on a freshly booted
// droplet: waits for SSH, injects the API key, enables features,
// relaxes the execution sandbox, and discovers the dashboard URL.
type Configurator struct {
	dial DialFunc

	EnvFile     string
	CLIPath     string
	ServiceName string

	SSHReadyInterval   time.Duration
	SSHReadyTimeout    time.Duration
	BootGraceDelay     time.Duration
	SettleDelay        time.Duration
	TokenRetryInterval time.Duration
	TokenMaxAttempts   int
}

func NewConfigurator(dial DialFunc) *Configurator {
	return &Configurator{
		dial:               dial,
		EnvFile:            "/opt/clawdbot.env",
		CLIPath:            "/opt/clawdbot-cli.sh",
		ServiceName:        "clawdbot",
		SSHReadyInterval:   10 * time.Second,
		SSHReadyTimeout:    180 * time.Second,
		BootGraceDelay:     30 * time.Second,
		SettleDelay:        30 * time.Second,
		TokenRetryInterval: 15 * time.Second,
		TokenMaxAttempts:   20,
	}
}

// WaitForSSH polls until a session can be opened or the readiness
// deadline elapses. Individual dial failures are swallowed and retried.
func (c *Configurator) WaitForSSH(ctx context.Context, ip string) error {
	deadline := time.Now().Add(c.SSHReadyTimeout)

	for time.Now().Before(deadline) {
		session, err := c.dial(ctx, ip)
		if err == nil {
			session.Close()
			logger.Info("SSH is ready", zap.String("ip", ip))
			return nil
		}

		logger.Info("SSH not ready yet", zap.String("ip", ip), zap.Error(err))
		if err := sleepCtx(ctx, c.SSHReadyInterval); err != nil {
			return err
		}
	}

	return fmt.Errorf("SSH did not become ready on %s within %s", ip, c.SSHReadyTimeout)
}

// ConfigureAPIKey injects the Anthropic API key and enables all
// dashboard features. The env file must already exist on the image; its
// absence is a precondition failure, not something to retry. Individual
// feature-flag and CLI command failures are logged and skipped.
func (c *Configurator) ConfigureAPIKey(ctx context.Context, ip, apiKey string) error {
	if err := c.WaitForSSH(ctx, ip); err != nil {
		return err
	}

	// Let the appliance services finish booting before editing config.
	logger.Info("Waiting for system to fully boot before configuring API key", zap.String("ip", ip))
	if err := sleepCtx(ctx, c.BootGraceDelay); err != nil {
		return err
	}

	session, err := c.dial(ctx, ip)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", ip, err)
	}
	defer session.Close()

	logger.Info("Connected, configuring Anthropic API key", zap.String("ip", ip))

	out, err := session.Run(ctx, fmt.Sprintf("test -f %s && echo 'exists'", c.EnvFile))
	if err != nil {
		return err
	}
	if out != "exists" {
		return fmt.Errorf("%s not found", c.EnvFile)
	}

	// Remove any existing key line, commented or not, then append the
	// new one.
	if _, err := session.Run(ctx, fmt.Sprintf("sed -i '/ANTHROPIC_API_KEY/d' %s", c.EnvFile)); err != nil {
		return err
	}
	if _, err := session.Run(ctx, fmt.Sprintf("echo 'ANTHROPIC_API_KEY=%s' >> %s", apiKey, c.EnvFile)); err != nil {
		return err
	}

	logger.Info("Enabling all features for dashboard", zap.String("ip", ip))
	for _, flag := range featureFlags {
		key, value := flag[0], flag[1]
		if _, err := session.Run(ctx, fmt.Sprintf("sed -i '/%s/d' %s", key, c.EnvFile)); err != nil {
			logger.Error("Failed to clear feature flag", zap.String("key", key), zap.Error(err))
			continue
		}
		if _, err := session.Run(ctx, fmt.Sprintf("echo '%s=%s' >> %s", key, value, c.EnvFile)); err != nil {
			logger.Error("Failed to set feature flag", zap.String("key", key), zap.Error(err))
		}
	}

	// Full host access so the bot can configure channels itself, and
	// sandbox off.
	logger.Info("Enabling full host access for clawdbot", zap.String("ip", ip))
	for _, cmd := range []string{
		fmt.Sprintf("%s config set tools.exec.host gateway", c.CLIPath),
		fmt.Sprintf("%s config set tools.exec.security full", c.CLIPath),
		fmt.Sprintf("%s config set agents.defaults.sandbox.mode off", c.CLIPath),
	} {
		if _, err := session.Run(ctx, cmd); err != nil {
			logger.Error("CLI config command failed", zap.String("cmd", cmd), zap.Error(err))
		}
	}

	verify, err := session.Run(ctx, fmt.Sprintf("grep '^ANTHROPIC_API_KEY=' %s", c.EnvFile))
	if err != nil {
		return err
	}
	if strings.Contains(verify, apiKey) {
		logger.Info("Anthropic API key configured successfully", zap.String("ip", ip))
	} else {
		logger.Warn("API key verification failed", zap.String("got", truncate(verify, 50)))
	}

	logger.Info("Restarting clawdbot service", zap.String("ip", ip))
	if _, err := session.Run(ctx, fmt.Sprintf("systemctl restart %s", c.ServiceName)); err != nil {
		return err
	}

	status, err := session.Run(ctx, fmt.Sprintf("systemctl is-active %s", c.ServiceName))
	if err != nil {
		return err
	}
	logger.Info("Clawdbot service status", zap.String("status", status))
	if status != "active" {
		// The endpoint discovery loop re-checks service health; a slow
		// first start is not fatal here.
		logger.Warn("Clawdbot service not active after restart", zap.String("ip", ip), zap.String("status", status))
	}

	return nil
}

// FetchDashboardURL retrieves the gateway token and composes the
// dashboard URL. When every attempt comes up empty the deployment is
// still usable, so the bare HTTPS URL is returned instead of an error.
func (c *Configurator) FetchDashboardURL(ctx context.Context, ip string) (string, error) {
	logger.Info("Waiting for clawdbot to fully initialize", zap.String("ip", ip))
	if err := sleepCtx(ctx, c.SettleDelay); err != nil {
		return "", err
	}

	tokenCmd := fmt.Sprintf("grep 'CLAWDBOT_GATEWAY_TOKEN=' %s 2>/dev/null | cut -d'=' -f2", c.EnvFile)

	for attempt := 1; attempt <= c.TokenMaxAttempts; attempt++ {
		url, err := c.tryFetchDashboardURL(ctx, ip, tokenCmd)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			logger.Error("SSH error while fetching dashboard URL",
				zap.String("ip", ip),
				zap.Int("attempt", attempt),
				zap.Error(err))
		} else if url != "" {
			logger.Info("Constructed dashboard URL", zap.String("url", url))
			return url, nil
		} else {
			logger.Info("Clawdbot not fully initialized yet",
				zap.String("ip", ip),
				zap.Int("attempt", attempt),
				zap.Int("maxAttempts", c.TokenMaxAttempts))
		}

		if attempt < c.TokenMaxAttempts {
			if err := sleepCtx(ctx, c.TokenRetryInterval); err != nil {
				return "", err
			}
		}
	}

	logger.Warn("Could not retrieve gateway token, returning basic URL", zap.String("ip", ip))
	return fmt.Sprintf("https://%s", ip), nil
}

func (c *Configurator) tryFetchDashboardURL(ctx context.Context, ip, tokenCmd string) (string, error) {
	session, err := c.dial(ctx, ip)
	if err != nil {
		return "", err
	}
	defer session.Close()

	token, err := session.Run(ctx, tokenCmd)
	if err != nil {
		return "", err
	}

	status, err := session.Run(ctx, fmt.Sprintf("systemctl is-active %s", c.ServiceName))
	if err != nil {
		return "", err
	}

	if token != "" && status == "active" {
		// Caddy terminates TLS on 443 in front of the gateway.
		return fmt.Sprintf("https://%s?token=%s", ip, token), nil
	}
	return "", nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
