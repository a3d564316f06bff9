package main

import "fmt"

// ==============================
// Commands (side effects)
// ==============================

// Command represents an external side effect to be executed by the daemon loop:
// sysfs writes, property sets, activity launches and replies to clients.
type Command interface {
	commandMarker()
	String() string
}

// CmdWriteFile writes Payload to a sysfs node (device form path).
type CmdWriteFile struct {
	Node    string
	Payload string
}

func (CmdWriteFile) commandMarker() {}
func (c CmdWriteFile) String() string {
	return fmt.Sprintf("CmdWriteFile(node=%s, payload=%q)", c.Node, c.Payload)
}

// CmdSetProperty persists a system property.
type CmdSetProperty struct {
	Key   string
	Value string
}

func (CmdSetProperty) commandMarker() {}
func (c CmdSetProperty) String() string {
	return fmt.Sprintf("CmdSetProperty(key=%s, value=%q)", c.Key, c.Value)
}

// CmdLaunchActivity opens a secondary screen.
type CmdLaunchActivity struct {
	Component string
}

func (CmdLaunchActivity) commandMarker() {}
func (c CmdLaunchActivity) String() string {
	return fmt.Sprintf("CmdLaunchActivity(component=%s)", c.Component)
}

// CmdBuildPanel probes every sink and builds the screen. Reply, if set, is
// answered after the new screen has been installed.
type CmdBuildPanel struct {
	Reply chan<- error
}

func (CmdBuildPanel) commandMarker() {}
func (CmdBuildPanel) String() string { return "CmdBuildPanel()" }

// CmdReply delivers the outcome of a client request. It is queued after the
// request's writes so the reply follows them.
type CmdReply struct {
	Reply chan<- error
	Err   error
}

func (CmdReply) commandMarker() {}
func (c CmdReply) String() string { return fmt.Sprintf("CmdReply(err=%v)", c.Err) }

// CmdPublishStateSnapshot delivers a reducer-produced snapshot to a requester.
type CmdPublishStateSnapshot struct {
	Reply    chan<- StateSnapshot
	Snapshot StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (CmdPublishStateSnapshot) String() string { return "CmdPublishStateSnapshot()" }
