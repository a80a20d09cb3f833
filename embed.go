package policychat

import "embed"

// StaticFS contains the embedded static assets for the minimal built-in chat
// page. The production frontend is a separate application; these files exist
// so the relay is usable from a browser without any extra deployment.
//
//go:embed static/*
var StaticFS embed.FS
