package models

// RingBuffer indices and constants
const (
	RB_IDX_TIMESTAMP = 0
	RB_IDX_PRICE     = 1
	RB_IDX_VOLUME    = 2
	RB_IDX_OPEN      = 3
	RB_IDX_HIGH      = 4
	RB_IDX_LOW       = 5
	RB_IDX_CLOSE     = 6
	RB_NUM_FEATURES  = 7
)
