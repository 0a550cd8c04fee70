// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

//go:build !unix

package cli

import "context"

func watchResume(ctx context.Context, _ func()) error {
	<-ctx.Done()
	return nil
}
