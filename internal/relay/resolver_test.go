package relay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"apirelay/internal/config"
	"apirelay/internal/registry"
)

type fakeFetcher struct {
	text string
	data []byte
	err  error
}

func (f *fakeFetcher) GetData(context.Context, []string, map[string]string, registry.Kind, string) (string, []byte, error) {
	return f.text, f.data, f.err
}

type fakeCache struct {
	saved    map[string]string
	loadText string
	loadPath string
	loadErr  error
	saveErr  error
}

func (c *fakeCache) Save(_ registry.Kind, name string, text string, data []byte) (string, string, error) {
	if c.saveErr != nil {
		return "", "", c.saveErr
	}
	if c.saved == nil {
		c.saved = map[string]string{}
	}
	if text != "" {
		c.saved[name] = text
		return text, "", nil
	}
	c.saved[name] = string(data)
	return "", "/cache/" + name, nil
}

func (c *fakeCache) Load(registry.Kind, string) (string, string, error) {
	if c.loadErr != nil {
		return "", "", c.loadErr
	}
	return c.loadText, c.loadPath, nil
}

func textDef(name string) registry.Definition {
	return registry.Definition{
		Keywords: []string{name},
		URLs:     []string{"https://api.example.com/" + name},
		Type:     registry.KindText,
	}
}

func relayCfg() config.RelayConfig {
	return config.RelayConfig{EnabledTypes: []string{"text", "image", "video", "audio"}}
}

func TestResolveRemote(t *testing.T) {
	t.Parallel()

	cache := &fakeCache{}
	r := New(&fakeFetcher{text: "a joke"}, cache, relayCfg(), zap.NewNop())

	text, path, source := r.Resolve(context.Background(), textDef("joke"), nil)
	require.Equal(t, SourceRemote, source)
	require.Equal(t, "a joke", text)
	require.Empty(t, path)
	require.Equal(t, "a joke", cache.saved["joke"])
}

func TestResolveFallsBackToLocal(t *testing.T) {
	t.Parallel()

	cache := &fakeCache{loadText: "stale but fine"}
	r := New(&fakeFetcher{err: errors.New("all endpoint urls failed")}, cache, relayCfg(), zap.NewNop())

	text, _, source := r.Resolve(context.Background(), textDef("joke"), nil)
	require.Equal(t, SourceLocal, source)
	require.Equal(t, "stale but fine", text)
}

func TestResolveBothPathsFail(t *testing.T) {
	t.Parallel()

	cache := &fakeCache{loadErr: errors.New("no cached content")}
	r := New(&fakeFetcher{err: errors.New("boom")}, cache, relayCfg(), zap.NewNop())

	text, path, source := r.Resolve(context.Background(), textDef("joke"), nil)
	require.Equal(t, SourceError, source)
	require.Empty(t, text)
	require.Empty(t, path)
}

func TestResolveSaveFailureFallsBackToLocal(t *testing.T) {
	t.Parallel()

	cache := &fakeCache{saveErr: errors.New("disk full"), loadText: "older copy"}
	r := New(&fakeFetcher{text: "fresh"}, cache, relayCfg(), zap.NewNop())

	text, _, source := r.Resolve(context.Background(), textDef("joke"), nil)
	require.Equal(t, SourceLocal, source)
	require.Equal(t, "older copy", text)
}

func TestAllowedGating(t *testing.T) {
	t.Parallel()

	cfg := config.RelayConfig{
		EnabledTypes:      []string{"text"},
		DisabledEndpoints: []string{"banned"},
		DisabledSites:     []string{"https://blocked.example.com"},
	}
	r := New(&fakeFetcher{}, &fakeCache{}, cfg, zap.NewNop())

	require.NoError(t, r.Allowed(textDef("joke")))

	require.ErrorIs(t, r.Allowed(textDef("banned")), ErrEndpointDisabled)

	siteDef := textDef("ok")
	siteDef.URLs = []string{"https://blocked.example.com/api"}
	require.ErrorIs(t, r.Allowed(siteDef), ErrSiteDisabled)

	imgDef := textDef("pic")
	imgDef.Type = registry.KindImage
	require.ErrorIs(t, r.Allowed(imgDef), ErrTypeDisabled)
}

func TestOverlayParams(t *testing.T) {
	t.Parallel()

	defaults := map[string]string{"msg": "", "qq": "123", "size": "big"}

	t.Run("positional args fill sorted keys", func(t *testing.T) {
		t.Parallel()
		got := OverlayParams(defaults, []string{"hello", "456"}, "")
		// Sorted keys: msg, qq, size.
		require.Equal(t, map[string]string{"msg": "hello", "qq": "456", "size": "big"}, got)
	})

	t.Run("no args keeps defaults and fills empties with subject", func(t *testing.T) {
		t.Parallel()
		got := OverlayParams(defaults, nil, "alice")
		require.Equal(t, map[string]string{"msg": "alice", "qq": "123", "size": "big"}, got)
	})

	t.Run("no args no subject keeps defaults untouched", func(t *testing.T) {
		t.Parallel()
		got := OverlayParams(defaults, nil, "")
		require.Equal(t, defaults, got)
	})

	t.Run("empty defaults", func(t *testing.T) {
		t.Parallel()
		require.Empty(t, OverlayParams(nil, []string{"x"}, ""))
	})
}
