package main

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

func echoHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/prescriptions/email", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		buf := make([]byte, 64)
		n, _ := r.Body.Read(buf)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf[:n])
	})
	return mux
}

func TestServeRoutesHealth(t *testing.T) {
	evt := events.APIGatewayV2HTTPRequest{
		RawPath: "/health",
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{Method: "GET"},
		},
	}
	resp, err := serve(context.Background(), echoHandler(), evt)
	if err != nil {
		t.Fatalf("serve returned error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Headers["content-type"] != "application/json" {
		t.Fatalf("expected content type header, got %v", resp.Headers)
	}
}

func TestServePassesPlainBody(t *testing.T) {
	evt := events.APIGatewayV2HTTPRequest{
		RawPath: "/prescriptions/email",
		Body:    `{"senderIdentity":"doc@example.com"}`,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{Method: "POST"},
		},
	}
	resp, err := serve(context.Background(), echoHandler(), evt)
	if err != nil {
		t.Fatalf("serve returned error: %v", err)
	}
	if resp.Body != `{"senderIdentity":"doc@example.com"}` {
		t.Fatalf("expected body to pass through, got %q", resp.Body)
	}
}

func TestServeDecodesBase64Body(t *testing.T) {
	raw := `{"message":"hi"}`
	evt := events.APIGatewayV2HTTPRequest{
		RawPath:         "/prescriptions/email",
		Body:            base64.StdEncoding.EncodeToString([]byte(raw)),
		IsBase64Encoded: true,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{Method: "POST"},
		},
	}
	resp, err := serve(context.Background(), echoHandler(), evt)
	if err != nil {
		t.Fatalf("serve returned error: %v", err)
	}
	if resp.Body != raw {
		t.Fatalf("expected decoded body, got %q", resp.Body)
	}
}

func TestServeRejectsBadBase64(t *testing.T) {
	evt := events.APIGatewayV2HTTPRequest{
		RawPath:         "/prescriptions/email",
		Body:            "%%%not-base64%%%",
		IsBase64Encoded: true,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{Method: "POST"},
		},
	}
	resp, err := serve(context.Background(), echoHandler(), evt)
	if err != nil {
		t.Fatalf("serve returned error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for undecodable body, got %d", resp.StatusCode)
	}
}

func TestServeDefaultsPath(t *testing.T) {
	resp, err := serve(context.Background(), echoHandler(), events.APIGatewayV2HTTPRequest{})
	if err != nil {
		t.Fatalf("serve returned error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for root path, got %d", resp.StatusCode)
	}
}
