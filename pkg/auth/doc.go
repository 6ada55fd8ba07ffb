// Package auth defines the identity and role types shared between the
// scrdeskctl auth client, the state broadcaster, and the session guard.
package auth
