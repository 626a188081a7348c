package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestNewHTTPServerCancelsOpenRequests(t *testing.T) {
	started := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	})
	httpServer, cancelRequests := newHTTPServer("127.0.0.1:0", handler)
	defer cancelRequests()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go func() { _ = httpServer.Serve(listener) }()

	finished := make(chan error, 1)
	go func() {
		response, err := http.Get("http://" + listener.Addr().String() + "/events")
		if err == nil {
			response.Body.Close()
		}
		finished <- err
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the handler")
	}

	cancelRequests()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("expected shutdown to finish once requests are cancelled, got %v", err)
	}
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("open request was not released")
	}
}
