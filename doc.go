// Package aurora implements a small tool-invocation protocol server. Tools are
// named, schema-described operations collected in a registry; a dispatcher
// validates incoming calls against their schemas and runs handlers under a
// per-call deadline; a session manager tracks streaming clients and reaps the
// idle ones.
//
// Three transport adapters translate their wire framing into one canonical
// request/response encoding: newline-delimited JSON over stdio, plain HTTP
// request/response, and server-sent events with an HTTP POST back-channel.
// The adapters expose http.Handlers (or a blocking Listen loop for stdio) so
// they can be mounted on any router.
package aurora
