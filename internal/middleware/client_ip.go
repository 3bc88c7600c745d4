package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// clientIPContextKey はリクエストコンテキストに解決済みのクライアントIPを格納するためのキー。
var clientIPContextKey = contextKey("client_ip")

// NewClientIPMiddleware はリクエスト元のIPアドレスを解決し、コンテキストに格納するミドルウェアを返す。
// X-Forwarded-ForとX-Real-IPは、接続元がtrustedに含まれるプロキシの場合のみ参照する。
func NewClientIPMiddleware(trusted []*net.IPNet) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ResolveClientIP(r, trusted)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientIPContextKey, ip)))
		})
	}
}

// ClientIP はリクエスト元のIPアドレスを返す。
// NewClientIPMiddlewareを通過していればその結果を、そうでなければRemoteAddrのホストを返す。
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPContextKey).(string); ok {
		return ip
	}
	return ResolveClientIP(r, nil)
}

// ResolveClientIP はRemoteAddrと転送ヘッダーからリクエスト元のIPアドレスを決定する。
//
// 接続元がtrustedに含まれない場合はヘッダーを無視して接続元を返す。
// 含まれる場合はX-Forwarded-Forを右から辿り、最初の信頼できないアドレスを返す。
// X-Forwarded-Forが無ければX-Real-IPを使う。解釈できない場合は空文字列を返す。
func ResolveClientIP(r *http.Request, trusted []*net.IPNet) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer := net.ParseIP(host)
	if peer == nil {
		return ""
	}
	if !isTrusted(peer, trusted) {
		return peer.String()
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		client := peer
		for i := len(hops) - 1; i >= 0; i-- {
			ip := net.ParseIP(strings.TrimSpace(hops[i]))
			if ip == nil {
				break
			}
			client = ip
			if !isTrusted(ip, trusted) {
				break
			}
		}
		return client.String()
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	return peer.String()
}

func isTrusted(ip net.IP, trusted []*net.IPNet) bool {
	for _, n := range trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
