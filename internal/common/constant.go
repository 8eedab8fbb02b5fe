// Package common contains shared constants and sentinel errors used across
// ballot server components.
package common

// StationTokenHeaderName is the gRPC metadata key used to carry the
// station token on outbound requests.
const StationTokenHeaderName = "station_token"

// AlreadyVotedMessage is what a voter sees for a refused second ballot.
const AlreadyVotedMessage = "You have already voted."
