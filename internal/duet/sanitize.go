/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package duet

// Sanitize returns a copy of s that playerID is allowed to see: the
// opponent's map is removed, and outsiders see neither map.
func Sanitize(s *Session, playerID string) Session {
	v := s.Clone()

	switch seat, ok := v.SeatOf(playerID); {
	case !ok:
		v.Player1Map = nil
		v.Player2Map = nil
	case seat == Player1:
		v.Player2Map = nil
	default:
		v.Player1Map = nil
	}

	return *v
}
