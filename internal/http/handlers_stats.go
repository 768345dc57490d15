package httpapi

import "net/http"

type statsResponse struct {
	TotalRooms      int                `json:"totalRooms"`
	TotalAgents     int                `json:"totalAgents"`
	TotalTasks      int                `json:"totalTasks"`
	SharedDirectory string             `json:"sharedDirectory"`
	Rooms           []roomStatResponse `json:"rooms"`
}

type roomStatResponse struct {
	Name         string `json:"name"`
	AgentCount   int    `json:"agentCount"`
	MessageCount int    `json:"messageCount"`
	IsActive     bool   `json:"isActive"`
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	totalAgents, totalTasks, perRoom, err := s.hub.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	rooms := make([]roomStatResponse, 0, len(perRoom))
	for _, rm := range perRoom {
		rooms = append(rooms, roomStatResponse{
			Name: rm.Name, AgentCount: rm.AgentCount, MessageCount: rm.MessageCount, IsActive: rm.IsActive,
		})
	}
	writeJSON(w, http.StatusOK, statsResponse{
		TotalRooms: len(perRoom), TotalAgents: totalAgents, TotalTasks: totalTasks,
		SharedDirectory: s.sharedDir, Rooms: rooms,
	})
}
