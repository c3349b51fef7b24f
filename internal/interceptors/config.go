package interceptors

import (
	"fmt"
	"log/slog"
)

// GetProfileConfig looks up [http.interceptors.<interceptorName>.profiles.<profileName>].
// The returned map is a copy with "profile" set to profileName.
func GetProfileConfig(interceptorsCfg map[string]map[string]any, interceptorName, profileName string) (map[string]any, error) {
	interceptorCfg, ok := interceptorsCfg[interceptorName]
	if !ok {
		return nil, fmt.Errorf("no %s interceptor configured, cannot find profile %q", interceptorName, profileName)
	}
	profilesRaw, ok := interceptorCfg["profiles"]
	if !ok {
		return nil, fmt.Errorf("no %s profiles configured, cannot find profile %q", interceptorName, profileName)
	}
	profiles, ok := profilesRaw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s profiles is not a map, cannot find profile %q", interceptorName, profileName)
	}
	profileRaw, ok := profiles[profileName]
	if !ok {
		return nil, fmt.Errorf("%s profile %q not found", interceptorName, profileName)
	}
	profile, ok := profileRaw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s profile %q is not a map", interceptorName, profileName)
	}

	out := make(map[string]any, len(profile)+1)
	for k, v := range profile {
		out[k] = v
	}
	out["profile"] = profileName
	return out, nil
}

// Build resolves a profile and constructs the named interceptor from it.
// An empty profileName means the service did not opt in; Build returns nil.
func Build(interceptorsCfg map[string]map[string]any, interceptorName, profileName string, log *slog.Logger) (Middleware, error) {
	if profileName == "" {
		return nil, nil
	}
	conf, err := GetProfileConfig(interceptorsCfg, interceptorName, profileName)
	if err != nil {
		return nil, err
	}
	newInterceptor, ok := Get(interceptorName)
	if !ok {
		return nil, fmt.Errorf("%s interceptor not registered", interceptorName)
	}
	mw, err := newInterceptor(conf, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s interceptor: %w", interceptorName, err)
	}
	return mw, nil
}
