package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"
)

func TestRootCmd_PortFlag(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"default", nil, 1338},
		{"short", []string{"-p", "9000"}, 9000},
		{"long", []string{"--port=9001"}, 9001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd(slog.New(slog.NewTextHandler(io.Discard, nil)))

			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("parse failed: %v", err)
			}

			got, err := cmd.Flags().GetInt("port")
			if err != nil {
				t.Fatalf("port flag: %v", err)
			}

			if got != tt.want {
				t.Errorf("port = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRootCmd_RejectsBadInput(t *testing.T) {
	for _, args := range [][]string{
		{"-p", "70000"},
		{"--port", "abc"},
		{"extra"},
		{"--config", "x.yaml"},
	} {
		cmd := newRootCmd(slog.New(slog.NewTextHandler(io.Discard, nil)))
		cmd.SetArgs(args)
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)

		if err := cmd.Execute(); err == nil {
			t.Errorf("args %q: expected an error", args)
		}
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	// Grab a free port, then release it for run.
	ln, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- run(ctx, port, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
