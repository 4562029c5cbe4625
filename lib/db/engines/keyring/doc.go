// Package keyring implements db.PrefDB on top of the operating system's
// credential store through github.com/zalando/go-keyring.
//
// A scope maps to a keyring service (Options.Service for the default scope,
// Options.Service + "/" + scope otherwise) and a key to an account. The
// credential stores only hold strings, so the engine advertises no native
// primitive features and the codec stringifies every kind before it arrives
// here. Listing, Save and Load are not supported.
//
// Use Available to check whether a credential store is present before
// choosing this engine.
package keyring
