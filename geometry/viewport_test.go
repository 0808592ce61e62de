package geometry

import "testing"

func TestViewportZoom(t *testing.T) {
	tests := []struct {
		name string
		set  float64
		want float64
	}{
		{"default step", 1.5, 1.5},
		{"snaps to step", 1.3, 1.25},
		{"below minimum", 0.1, MinZoom},
		{"above maximum", 10, MaxZoom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewViewport(A4)
			if got := v.SetZoom(tt.set); got != tt.want {
				t.Errorf("SetZoom(%v) = %v, want %v", tt.set, got, tt.want)
			}
		})
	}
}

func TestViewportSteps(t *testing.T) {
	v := NewViewport(A4)
	for i := 0; i < 20; i++ {
		v.ZoomIn()
	}
	if v.Zoom != MaxZoom {
		t.Errorf("Zoom after ZoomIn = %v, want %v", v.Zoom, MaxZoom)
	}
	for i := 0; i < 20; i++ {
		v.ZoomOut()
	}
	if v.Zoom != MinZoom {
		t.Errorf("Zoom after ZoomOut = %v, want %v", v.Zoom, MinZoom)
	}
}

func TestViewportRenderSize(t *testing.T) {
	v := NewViewport(A4)
	v.PixelRatio = 2
	if got, want := v.RenderSize(), (Size{1190, 1684}); got != want {
		t.Fatalf("RenderSize() = %v, want %v", got, want)
	}

	p, err := v.ToLogical(Pt{X: 300, Y: 200})
	if err != nil {
		t.Fatalf("ToLogical() error: %v", err)
	}
	if !near(p.X, 150) || !near(p.Y, 100) {
		t.Errorf("ToLogical() = %v, want (150, 100)", p)
	}

	r, err := v.ToRender(p)
	if err != nil {
		t.Fatalf("ToRender() error: %v", err)
	}
	if !near(r.X, 300) || !near(r.Y, 200) {
		t.Errorf("ToRender() = %v, want (300, 200)", r)
	}
}
