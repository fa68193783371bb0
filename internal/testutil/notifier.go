package testutil

import "sync"

// Notification is one message captured by RecordingNotifier
type Notification struct {
	UserID  string
	Type    string
	Payload interface{}
}

// RecordingNotifier captures realtime notifications
type RecordingNotifier struct {
	mu          sync.Mutex
	user        []Notification
	leaderboard []Notification
}

func (n *RecordingNotifier) NotifyUser(userID, msgType string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.user = append(n.user, Notification{UserID: userID, Type: msgType, Payload: payload})
}

func (n *RecordingNotifier) NotifyLeaderboard(msgType string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.leaderboard = append(n.leaderboard, Notification{Type: msgType, Payload: payload})
}

// Types returns the types of the messages sent to a user, in order
func (n *RecordingNotifier) Types(userID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, m := range n.user {
		if m.UserID == userID {
			out = append(out, m.Type)
		}
	}
	return out
}

// LeaderboardCount returns how many leaderboard messages were sent
func (n *RecordingNotifier) LeaderboardCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.leaderboard)
}
