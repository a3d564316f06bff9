package main

import (
	"log/slog"
	"time"
)

// runEffect executes a single reducer-emitted Command (side effect) against the
// platform and emits an observation Event via onEvent.
//
// Design rules:
// - This function is allowed to perform I/O.
// - It must never call Reduce() directly; it only emits Events to be reduced by the daemon loop.
// - Sink writes are fire-and-forget: failures are logged and reported, never retried.
func runEffect(
	env *PanelEnv,
	bindings Bindings,
	cmd Command,
	logger *slog.Logger,
	onEvent func(Event),
) {
	if onEvent == nil {
		onEvent = func(Event) {}
	}
	if env == nil {
		env = &PanelEnv{}
	}

	now := time.Now()

	switch c := cmd.(type) {
	case CmdWriteFile:
		err := env.Sysfs.Write(c.Node, c.Payload)
		recordSinkWrite("file", err)
		if err != nil {
			logger.Warn("sysfs write failed", "node", c.Node, "payload", c.Payload, "error", err)
			onEvent(SinkWriteFailed{Command: cmd, Err: err, At: now})
			return
		}
		logger.Debug("sysfs write", "node", c.Node, "payload", c.Payload)

	case CmdSetProperty:
		if env.Props == nil {
			logger.Warn("no property store configured", "key", c.Key)
			onEvent(SinkWriteFailed{Command: cmd, Err: errNoCollaborator{what: "property store"}, At: now})
			return
		}
		err := env.Props.Set(c.Key, c.Value)
		recordSinkWrite("property", err)
		if err != nil {
			logger.Warn("set property failed", "key", c.Key, "value", c.Value, "error", err)
			onEvent(SinkWriteFailed{Command: cmd, Err: err, At: now})
			return
		}
		logger.Debug("set property", "key", c.Key, "value", c.Value)

	case CmdLaunchActivity:
		if env.Launcher == nil {
			logger.Warn("no activity launcher configured", "component", c.Component)
			onEvent(SinkWriteFailed{Command: cmd, Err: errNoCollaborator{what: "activity launcher"}, At: now})
			return
		}
		err := env.Launcher.Launch(c.Component)
		recordSinkWrite("launcher", err)
		if err != nil {
			logger.Warn("launch activity failed", "component", c.Component, "error", err)
			onEvent(SinkWriteFailed{Command: cmd, Err: err, At: now})
			return
		}
		logger.Info("launched activity", "component", c.Component)

	case CmdBuildPanel:
		panel := BuildPanel(bindings, env, logger)
		logger.Info("panel built", "device", panel.Device, "widgets", len(panel.Order))
		onEvent(PanelBuilt{Panel: panel, Reply: c.Reply, At: now})

	case CmdReply:
		if c.Reply == nil {
			return
		}
		// Requesters allocate a buffered channel; never block the daemon loop.
		select {
		case c.Reply <- c.Err:
		default:
			logger.Warn("reply channel not ready; dropping reply", "error", c.Err)
		}

	case CmdPublishStateSnapshot:
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}
		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String())
		onEvent(SinkWriteFailed{Command: cmd, Err: errUnknownCommand{cmd: cmd}, At: now})
	}
}

// errNoCollaborator indicates a command needs a platform collaborator that was not configured.
type errNoCollaborator struct {
	what string
}

func (e errNoCollaborator) Error() string { return "no " + e.what + " configured" }

type errUnknownCommand struct {
	cmd Command
}

func (e errUnknownCommand) Error() string { return "unknown command: " + e.cmd.String() }
