package httpapi

import "net/http"

// NewRouter wires svc's handlers onto the request/response surface in §6,
// plus wsHandler on /ws if non-nil.
func NewRouter(svc *Service, wsHandler http.HandlerFunc) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/join/", svc.handleJoin)
	mux.HandleFunc("/api/leave/", svc.handleLeave)
	mux.HandleFunc("/api/send", svc.handleSend)
	mux.HandleFunc("/api/messages/", svc.handleMessages)
	mux.HandleFunc("/api/rooms", svc.handleListRooms)
	mux.HandleFunc("/api/agents/", svc.handleListAgents)
	mux.HandleFunc("/api/tasks", svc.handleTasks)
	mux.HandleFunc("/api/tasks/", svc.handleTaskByRoomOrUpdate)
	mux.HandleFunc("/api/broadcast/", svc.handleBroadcast)
	mux.HandleFunc("/api/memory/", svc.handleMemory)
	mux.HandleFunc("/api/notifications/", svc.handleNotifications)
	mux.HandleFunc("/api/stats", svc.handleStats)
	mux.HandleFunc("/api/fs/read", svc.handleFSRead)
	mux.HandleFunc("/api/fs/write", svc.handleFSWrite)
	mux.HandleFunc("/api/fs/list", svc.handleFSList)
	mux.HandleFunc("/api/fs/delete", svc.handleFSDelete)

	if wsHandler != nil {
		mux.HandleFunc("/ws", wsHandler)
	}
	return mux
}
