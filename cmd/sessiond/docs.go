// Package main sessiond API.
//
// @title                     sessiond API
// @version                   0.1.0
// @description               Session daemon for local LLM inference. Manages model sessions, streams tokens over NDJSON, and accounts native memory per session.
// @contact.name              sessiond maintainers
// @license.name              MIT
// @BasePath                  /
// @schemes                   http
package main
