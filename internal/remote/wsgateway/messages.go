package wsgateway

import (
	"context"
	"encoding/json"

	"mlcore/internal/modmanager"
)

// ChannelMessage is the gateway's wire envelope: snake_case field names,
// with kebab-case action values, matching the service's existing JSON API.
type ChannelMessage struct {
	Action      string       `json:"action"`
	ChannelName string       `json:"channel_name"`
	Data        *MessageData `json:"data,omitempty"`
}

// MessageData carries the install request payload of an "install" message.
type MessageData struct {
	InstallCode string `json:"install_code"`
	ModFileID   string `json:"mod_file_id,omitempty"`
}

const (
	actionWebConnected    = "web-connected"
	actionHello           = "hello"
	actionWebDisconnected = "web-disconnected"
	actionInstall         = "install"
	actionAnnounce        = "announce"
	actionInstallComplete = "install-complete"
)

// handleFrame parses a single inbound text/binary frame and reacts to it,
// queuing any reply on outbound. A malformed frame is logged and otherwise
// ignored rather than tearing down the connection.
func (c *Client) handleFrame(ctx context.Context, outbound chan<- []byte, data []byte) error {
	var msg ChannelMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Warn("gateway sent malformed message", "error", err)
		return nil
	}

	switch msg.Action {
	case actionWebConnected, actionHello:
		return c.enqueue(ctx, outbound, ChannelMessage{
			Action:      actionAnnounce,
			ChannelName: msg.ChannelName,
		})

	case actionWebDisconnected:
		c.log.Debug("web client disconnected from gateway channel", "channel", msg.ChannelName)
		return nil

	case actionInstall:
		return c.handleInstall(ctx, outbound, msg)

	default:
		c.log.Warn("gateway sent unrecognized action", "action", msg.Action)
		return nil
	}
}

// handleInstall services an inbound install request. Failures to install
// are logged, not propagated: they have nothing to do with the health of
// the gateway connection itself.
func (c *Client) handleInstall(ctx context.Context, outbound chan<- []byte, msg ChannelMessage) error {
	if msg.Data == nil {
		c.log.Warn("install message missing data", "channel", msg.ChannelName)
		return nil
	}

	if _, err := c.installer.Install(ctx, modmanager.RemoteSource(msg.Data.InstallCode)); err != nil {
		c.log.Warn("gateway-requested install failed", "code", msg.Data.InstallCode, "error", err)
		return nil
	}

	return c.enqueue(ctx, outbound, ChannelMessage{
		Action:      actionInstallComplete,
		ChannelName: msg.ChannelName,
	})
}

func (c *Client) enqueue(ctx context.Context, outbound chan<- []byte, msg ChannelMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("failed to marshal outbound gateway message", "error", err)
		return nil
	}
	select {
	case outbound <- body:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
