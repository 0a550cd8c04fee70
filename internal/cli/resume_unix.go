// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

//go:build unix

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// watchResume calls fn each time the process is continued after a job
// control stop (Ctrl-Z, then fg).
func watchResume(ctx context.Context, fn func()) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGCONT)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ch:
			fn()
		}
	}
}
