package ir

// EngineVersion is the causalchain engine version, reported by the CLI.
// The store's schema version is tracked separately via PRAGMA user_version.
const EngineVersion = "0.1.0"
