package httpx

type ctxKey string

// CtxKeyPrincipal holds the authenticated principal resolved by the authn
// middleware. Handlers pass it explicitly into services; nothing below the
// HTTP layer reads it from context.
const CtxKeyPrincipal ctxKey = "principal"
