package tts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/polly/types"

	"github.com/apresai/briefcast/internal/audio"
	"github.com/apresai/briefcast/internal/script"
)

func TestVoiceTableLookupFallsBackToDefault(t *testing.T) {
	vt := DefaultVoiceTable(&stubProvider{})
	if got := vt.Lookup("narrator"); got.VoiceID != "h" {
		t.Fatalf("Lookup(unknown) = %+v, want host profile", got)
	}
	if got := vt.Lookup(script.RoleAnalyst); got.VoiceID != "a" {
		t.Fatalf("Lookup(analyst) = %+v", got)
	}
	if !vt.Lookup(script.RoleSFX).Cue {
		t.Fatalf("sfx profile should be a cue")
	}
}

func TestVoiceTableValidate(t *testing.T) {
	vt := DefaultVoiceTable(&stubProvider{})
	roles := []script.Role{script.RoleHost, script.RoleAnalyst, script.RoleSFX}
	if err := vt.Validate(roles); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if err := vt.Validate(append(roles, "guest")); err == nil {
		t.Fatalf("Validate() accepted a role without a profile")
	}

	bad := vt.Merge(map[script.Role]VoiceProfile{script.RoleHost: {VoiceID: "h", RatePercent: 300}})
	if err := bad.Validate(roles); err == nil {
		t.Fatalf("Validate() accepted rate 300%%")
	}
}

func TestVoiceTableMergeKeepsStockVoice(t *testing.T) {
	vt := DefaultVoiceTable(&stubProvider{}).Merge(map[script.Role]VoiceProfile{
		script.RoleAnalyst: {RatePercent: -10},
	})
	got := vt.Lookup(script.RoleAnalyst)
	if got.VoiceID != "a" || got.RatePercent != -10 {
		t.Fatalf("merged analyst = %+v", got)
	}
}

func TestSpeedFactorClamps(t *testing.T) {
	cases := []struct {
		rate int
		want float64
	}{
		{0, 1}, {10, 1.1}, {-50, 0.7}, {100, 1.2},
	}
	for _, tc := range cases {
		if got := speedFactor(tc.rate, 0.7, 1.2); got < tc.want-1e-9 || got > tc.want+1e-9 {
			t.Errorf("speedFactor(%d) = %v, want %v", tc.rate, got, tc.want)
		}
	}
}

func TestPollySSML(t *testing.T) {
	got, err := pollySSML("Tom & Jerry <3", Voice{RatePercent: 10, PitchSemitones: -1}, types.EngineNeural)
	if err != nil {
		t.Fatalf("pollySSML() error = %v", err)
	}
	want := `<speak><prosody rate="110%">Tom &amp; Jerry &lt;3</prosody></speak>`
	if got != want {
		t.Fatalf("pollySSML() = %q, want %q", got, want)
	}

	plain, _ := pollySSML("hi", Voice{}, types.EngineNeural)
	if plain != "<speak>hi</speak>" {
		t.Fatalf("pollySSML() = %q", plain)
	}

	std, _ := pollySSML("hi", Voice{PitchSemitones: 2}, types.EngineStandard)
	if !strings.Contains(std, `pitch="+12%"`) {
		t.Fatalf("pollySSML(standard) = %q", std)
	}
}

func TestElevenLabsSendsSpeedAndClassifiesErrors(t *testing.T) {
	var got elevenLabsRequest
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		if !strings.HasPrefix(r.URL.Path, "/voice-1") {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(status)
		w.Write([]byte("ID3fake"))
	}))
	defer srv.Close()

	p := NewElevenLabsProvider(ProviderConfig{ElevenLabsAPIKey: "k"})
	p.baseURL = srv.URL

	res, err := p.Synthesize(context.Background(), "hello", Voice{ID: "voice-1", RatePercent: 10})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if res.Format != audio.FormatMP3 || string(res.Data) != "ID3fake" {
		t.Fatalf("result = %+v", res)
	}
	if got.VoiceSettings == nil || got.VoiceSettings.Speed < 1.09 || got.VoiceSettings.Speed > 1.11 {
		t.Fatalf("speed = %+v, want 1.1", got.VoiceSettings)
	}

	status = http.StatusServiceUnavailable
	_, err = p.Synthesize(context.Background(), "hello", Voice{ID: "voice-1"})
	var re *RetryableError
	if !errors.As(err, &re) || re.StatusCode != 503 {
		t.Fatalf("error = %v, want RetryableError 503", err)
	}
}

func TestAvailableVoicesForEveryProvider(t *testing.T) {
	for _, name := range ProviderNames {
		voices, err := AvailableVoices(name)
		if err != nil || len(voices) == 0 {
			t.Errorf("AvailableVoices(%q) = %d voices, %v", name, len(voices), err)
		}
	}
	if _, err := AvailableVoices("edge"); err == nil {
		t.Errorf("AvailableVoices(edge) expected error")
	}
}
