package domain

const (
	ModelChannel     = "channel"
	ModelLocusBinSet = "locus_bin_set"
)
