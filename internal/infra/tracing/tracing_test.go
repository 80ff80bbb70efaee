package tracing

import (
	"context"
	"testing"
)

func TestInit(t *testing.T) {
	tests := []struct {
		exporter string
		wantErr  bool
	}{
		{"", false},
		{"none", false},
		{"stdout", false},
		{"jaeger", true},
	}

	for _, tt := range tests {
		t.Run(tt.exporter, func(t *testing.T) {
			shutdown, err := Init(tt.exporter)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Init(%q) error = %v, wantErr %v", tt.exporter, err, tt.wantErr)
			}
			if err == nil {
				_, span := Tracer().Start(context.Background(), "test")
				span.End()
				if err := shutdown(context.Background()); err != nil {
					t.Errorf("shutdown: %v", err)
				}
			}
		})
	}
	Init("none")
}
