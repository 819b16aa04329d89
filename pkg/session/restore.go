package session

// RestoreAll starts a session for every credential directory found under
// the root. Called once at process start to bring back sessions that were
// live before the previous shutdown or crash. Individual failures are
// logged and skipped so one bad directory cannot block the rest.
func (m *Manager) RestoreAll() {
	ids, err := m.store.List()
	if err != nil {
		m.log.Errorf("failed to scan credential root for restore: %v", err)
		return
	}

	for _, id := range ids {
		if _, err := m.Start(id); err != nil {
			m.log.Errorf("session %s: restore failed: %v", id, err)
			continue
		}
		m.log.Infof("session %s: restored from disk", id)
	}
}

// Flush terminates sessions discovered on disk. With onlyInactive set,
// sessions that validate as connected are spared; otherwise every
// discovered session goes. Per-session failures are logged and the loop
// continues.
func (m *Manager) Flush(onlyInactive bool) error {
	ids, err := m.store.List()
	if err != nil {
		return err
	}

	for _, id := range ids {
		v := m.Validate(id)
		if onlyInactive && v.Success {
			continue
		}
		if err := m.Terminate(id, v); err != nil {
			m.log.Errorf("session %s: flush terminate failed: %v", id, err)
		}
	}
	return nil
}
