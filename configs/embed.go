// Package configs provides embedded configuration templates for semdesk.
//
// Templates are embedded at build time so `semdesk config init` works from
// any distribution. The template documents every key NewConfig sets; keys
// left out of a user file keep their defaults.
package configs

import _ "embed"

// UserConfigTemplate is the template for the user configuration.
// Created by: `semdesk config init` at ~/.config/semdesk/config.yaml
//
//go:embed user-config.example.yaml
var UserConfigTemplate string
