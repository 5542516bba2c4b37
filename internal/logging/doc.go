// Package logging provides structured logging for agentcrew deployments.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// attributes that identify the deployment, agent and provider a record belongs
// to, so the interleaved output of many concurrently supervised agents can be
// filtered after the fact.
//
// # Basic Usage
//
//	logger, err := logging.NewRotatingLogger(sessionDir, "info", logging.RotationConfig{
//	    MaxSizeMB:  10,
//	    MaxBackups: 3,
//	})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	agentLog := logger.WithDeployment(deploymentID).WithAgent("claude-1a2b")
//	agentLog.Info("agent initialized", "worktree", path)
//
// # Rotation
//
// [NewRotatingLogger] writes through a size-bounded lumberjack writer. A
// MaxSizeMB of 0 disables rotation and appends to a plain file.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer.
package logging
