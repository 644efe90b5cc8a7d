package main

import "go.uber.org/zap"

// Session mutations flow through these appliers so the sidebar tree, the
// project home list, and the active timeline all observe the same session
// object. Each applier performs exactly one store mutation and at most one
// selection transition, plus best-effort cache write-through.

func (m *model) applySessionCreated(sess session) {
	m.store.upsert(sess)
	m.cacheSessionEntry(sess)
}

// applySessionRenamed records the canonical title the backend returned.
// Callers invoke this only on success; a failed rename leaves the store
// untouched and the edit affordance open.
func (m *model) applySessionRenamed(sess session) {
	m.store.upsert(sess)
	if active, ok := m.sel.isSession(); ok && active.id == sess.id {
		m.sel = sessionSelection(sess)
	}
	m.cacheSessionEntry(sess)
}

// applySessionTitleUpdated merges a server-assigned title (usually derived
// from the first prompt) into the store and the active view.
func (m *model) applySessionTitleUpdated(sess session) {
	m.store.upsert(sess)
	if active, ok := m.sel.isSession(); ok && active.id == sess.id {
		m.sel = sessionSelection(sess)
	}
	m.cacheSessionEntry(sess)
}

// applySessionDeleted removes the session everywhere. Deleting the active
// session clears the selection; deleting any other leaves it alone.
func (m *model) applySessionDeleted(sessionID int64) {
	m.store.remove(sessionID)
	delete(m.sessionMessages, sessionID)
	if active, ok := m.sel.isSession(); ok && active.id == sessionID {
		m.clearSelection()
	}
	if m.cache != nil {
		if err := dropCachedSession(m.cache, sessionID); err != nil {
			m.logger.Warn("cache drop failed", zap.Int64("session_id", sessionID), zap.Error(err))
		}
	}
}

// applyProjectDeleted removes the project and cascades into the session
// store. None of the project's sessions move to the orphaned bucket; if one
// of them (or the project's home view) was active, the selection clears.
func (m *model) applyProjectDeleted(projectID int64) {
	for _, sess := range m.store.filterByProject(projectID) {
		delete(m.sessionMessages, sess.id)
	}
	m.registry.remove(projectID, &m.store)

	switch m.sel.kind {
	case selectedProjectHome:
		if m.sel.projectID == projectID {
			m.clearSelection()
		}
	case selectedSession:
		if m.sel.session.projectID == projectID {
			m.clearSelection()
		}
	}

	if m.cache != nil {
		if err := dropCachedProject(m.cache, projectID); err != nil {
			m.logger.Warn("cache drop failed", zap.Int64("project_id", projectID), zap.Error(err))
		}
	}
}

// clearSelection transitions to no-selection and drops the view-local state
// that belonged to whatever was shown: prompt draft, timeline cache,
// project home list.
func (m *model) clearSelection() {
	m.sel = noSelection()
	m.prompt.Reset()
	m.sessionMessages = make(map[int64][]chatMessage)
	m.projectSessions = nil
	m.refreshTimelineViewport()
}

// cacheSessionEntry mirrors one session into the local cache. Cache errors
// never surface past the log.
func (m *model) cacheSessionEntry(sess session) {
	if m.cache == nil {
		return
	}
	if err := cacheSession(m.cache, sess); err != nil {
		m.logger.Warn("cache write failed", zap.Int64("session_id", sess.id), zap.Error(err))
	}
}

// cacheTimeline mirrors a session's in-memory timeline into the local cache.
func (m *model) cacheTimeline(sessionID int64) {
	if m.cache == nil {
		return
	}
	if err := cacheMessages(m.cache, sessionID, m.sessionMessages[sessionID]); err != nil {
		m.logger.Warn("cache write failed", zap.Int64("session_id", sessionID), zap.Error(err))
	}
}
