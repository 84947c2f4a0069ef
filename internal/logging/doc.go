// Package logging provides structured slog logging with a size-rotating log
// file for semdesk. The daemon always logs to ~/.semdesk/logs/semdesk.log;
// --debug lowers the level to debug and mirrors output to stderr.
package logging
