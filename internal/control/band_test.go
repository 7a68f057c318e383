package control

import "testing"

func TestSelectBand(t *testing.T) {
	temp := DefaultTemperatureThresholds()
	humi := DefaultHumidityThresholds()

	tests := []struct {
		name string
		v    float64
		th   Thresholds
		want Band
	}{
		{"temperature below cold", 21.9, temp, BandLow},
		{"temperature at cold boundary", 22, temp, BandMiddle},
		{"temperature normal", 25, temp, BandMiddle},
		{"temperature at hot boundary", 29, temp, BandMiddle},
		{"temperature hot", 29.1, temp, BandHigh},
		{"humidity dry", 39.9, humi, BandLow},
		{"humidity at dry boundary", 40, humi, BandMiddle},
		{"humidity at comfortable boundary", 60, humi, BandMiddle},
		{"humidity humid", 60.1, humi, BandHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectBand(tt.v, tt.th.Low, tt.th.High); got != tt.want {
				t.Errorf("SelectBand(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestBandLabels(t *testing.T) {
	if TemperatureLabel(BandLow) != "COLD" || TemperatureLabel(BandHigh) != "HOT" {
		t.Error("temperature labels")
	}
	if HumidityLabel(BandMiddle) != "COMFORTABLE" {
		t.Error("humidity labels")
	}
	colors := DefaultColors()
	if colors[BandLow].R != 255 || colors[BandHigh].B != 255 || colors[BandMiddle].G != 255 {
		t.Errorf("DefaultColors() = %v", colors)
	}
}
