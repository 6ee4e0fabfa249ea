package reservation

import "log/slog"

const redacted = "******"

// Secret holds a password. It never prints its value; call Reveal where the
// plaintext is actually needed.
type Secret string

func (s Secret) String() string { return redacted }

func (s Secret) GoString() string { return redacted }

func (s Secret) LogValue() slog.Value { return slog.StringValue(redacted) }

func (s Secret) Reveal() string { return string(s) }
