// Package repositories is the durable persistence store for users,
// rooms, memberships and messages, backed by BadgerDB.
//
// Key scheme:
//
//	user:{username}                          -> userRecord
//	useridx:email:{email}                    -> username (uniqueness index)
//	room:{roomId}                            -> roomRecord
//	member:{roomId}:{userId}                 -> memberRecord
//	memberof:{userId}:{roomId}               -> (empty, reverse index)
//	msg:{roomId}:{unixNano:019d}:{msgId:019d} -> messageRecord
//
// The padded timestamp makes messages sort chronologically under
// lexicographic key order; the padded message id breaks ties in
// insertion order when two messages share a nanosecond.
package repositories

import (
	"fmt"

	"roomchat/domain"
)

func userKey(username string) []byte {
	return []byte("user:" + username)
}

func emailKey(email string) []byte {
	return []byte("useridx:email:" + email)
}

func roomKey(id domain.RoomID) []byte {
	return []byte(fmt.Sprintf("room:%d", id))
}

func memberKey(roomID domain.RoomID, userID domain.UserID) []byte {
	return []byte(fmt.Sprintf("member:%d:%d", roomID, userID))
}

func memberPrefix(roomID domain.RoomID) []byte {
	return []byte(fmt.Sprintf("member:%d:", roomID))
}

func memberOfKey(userID domain.UserID, roomID domain.RoomID) []byte {
	return []byte(fmt.Sprintf("memberof:%d:%d", userID, roomID))
}

func memberOfPrefix(userID domain.UserID) []byte {
	return []byte(fmt.Sprintf("memberof:%d:", userID))
}

func messageKey(roomID domain.RoomID, unixNano int64, msgID int64) []byte {
	return []byte(fmt.Sprintf("msg:%d:%019d:%019d", roomID, unixNano, msgID))
}

func messagePrefix(roomID domain.RoomID) []byte {
	return []byte(fmt.Sprintf("msg:%d:", roomID))
}
