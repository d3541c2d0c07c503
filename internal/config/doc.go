// Package config loads and watches the feedwatch configuration file.
//
// Top-level types:
//   - Config: poll_interval, state_file, minimum_listeners, sort, plus the
//     detector, sources, notify, history and server sections
//   - Detector: spike_base, low_value_sensitivity, decay_rate, decay_period,
//     reset_fraction, adjust_fraction, required_streak
//   - Source: name, type (directory|prometheus), url, timeout, auth, tls,
//     optional metric/alert_metric family overrides
//   - AuthConfig: mode (mtls|apikey|bearer|basic|none), cert/key/ca files,
//     header, key_env, token_env, username, password_env; Key(), Token() and
//     Password() resolve from environment variables
//   - Notify/Webhook: rate_limit plus per-target type (slack|discord|http),
//     url or url_env, token_env, timeout
//   - History: path, retention, prune_interval
//   - Server: listen, api_key_env, broadcast_interval, status_ttl
//
// Load(path) reads the YAML file, applies defaults (6m poll, averages.csv,
// minimum 15 listeners, descending sort, detector constants), then validates
// required fields and enums.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. Atomic-save editors replace the file
// inode, so the watch is re-added after each successful reload.
package config
