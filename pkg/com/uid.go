package com

import "github.com/rs/xid"

// Uid is a unique participant id.
// Ids are lexicographically sortable, which gives every pair of
// participants one stable order both sides agree on.
type Uid struct {
	xid.ID
}

func NewUid() Uid { return Uid{xid.New()} }

func (u Uid) Short() string { return u.String()[:3] + "." + u.String()[len(u.String())-3:] }
