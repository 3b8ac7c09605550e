/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"designeditor/internal/config"
	"designeditor/internal/crash"
	applog "designeditor/internal/log"
	"designeditor/internal/telemetry"
)

func main() {
	cfg, token, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid config: %v\n", err)
		os.Exit(1)
	}
	applog.Init(cfg.Logging.LogOptions())
	telemetry.NewDefault(cfg.Telemetry.TelemetryOptions())
	l := applog.WithComponent("cli")

	// The edit command fills in Snapshot once a session is open.
	target := &crash.Target{Dir: cfg.Storage.DataDir, Name: "session"}
	defer crash.Recover(target)

	l.Debug("start", slog.Int("args", len(os.Args)))
	app := newCLIApp(&appState{cfg: cfg, token: token, crash: target})
	runErr := app.Run(os.Args)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	telemetry.Default().Flush(ctx)
	cancel()
	telemetry.Default().Close()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		os.Exit(1)
	}
}
