// Package server serves the built-in HTML test client used to exercise the
// DM flow without the real frontend.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
)

// TestPageHandler serves an HTML test page for the Whismur WebSocket
// protocol: sign up or log in, open a DM by display name, exchange
// messages, and watch typing and seen updates.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		slog.Warn("error writing HTML response", "err", err)
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Whismur Test Client</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; max-width: 640px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"], input[type="password"] { padding: 5px; margin-right: 6px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
        .own { color: blue; }
        .other { color: green; }
        .meta { color: gray; font-style: italic; }
    </style>
</head>
<body>
    <h1>whismur</h1>
    <div id="status" class="meta">Disconnected</div>

    <div id="login">
        <input type="text" id="username" placeholder="Display name">
        <input type="password" id="password" placeholder="Password">
        <label><input type="checkbox" id="signup"> sign up</label>
        <button onclick="authenticate()">Go</button>
    </div>

    <div id="dm" style="display:none">
        <input type="text" id="target" placeholder="Chat with...">
        <button onclick="startDM()">Open DM</button>
        <span id="peer" class="meta"></span>
    </div>

    <div id="messages"></div>
    <div id="typing" class="meta"></div>

    <form onsubmit="sendMessage(); return false;">
        <input type="text" id="input" placeholder="Type a message..." oninput="notifyTyping()">
        <button type="submit">Send</button>
    </form>

    <script>
        let ws = null;
        let me = '';
        let nextAck = 1;
        const pending = {};
        const messagesDiv = document.getElementById('messages');

        function connect() {
            ws = new WebSocket('ws://' + location.host + '/ws');
            ws.onopen = () => { document.getElementById('status').textContent = 'Connected'; };
            ws.onclose = () => { document.getElementById('status').textContent = 'Disconnected'; };
            ws.onmessage = (ev) => {
                for (const line of ev.data.split('\n')) { handleFrame(JSON.parse(line)); }
            };
        }

        function send(event, data, cb) {
            const frame = { event: event, data: data };
            if (cb) { frame.ack = nextAck; pending[nextAck] = cb; nextAck++; }
            ws.send(JSON.stringify(frame));
        }

        function handleFrame(frame) {
            if (frame.event === 'ack') {
                const cb = pending[frame.ack];
                delete pending[frame.ack];
                if (cb) cb(frame.data);
                return;
            }
            if (frame.event === 'privateMessage') { addMessage(frame.data); }
            if (frame.event === 'messageSeenUpdate') {
                addMeta('message ' + frame.data.messageId + ' seen by ' + frame.data.count);
            }
            if (frame.event === 'typing') {
                document.getElementById('typing').textContent =
                    frame.data.isTyping ? frame.data.user + ' is typing...' : '';
            }
            if (frame.event === 'yourDisplayName') { me = frame.data.name; }
        }

        function authenticate() {
            send('authenticate', {
                username: document.getElementById('username').value,
                password: document.getElementById('password').value,
                isSignup: document.getElementById('signup').checked
            }, (resp) => {
                if (!resp.success) { addMeta(resp.error); return; }
                me = resp.displayName;
                document.getElementById('login').style.display = 'none';
                document.getElementById('dm').style.display = 'block';
                addMeta('signed in as ' + me);
            });
        }

        function startDM() {
            send('startDM', { targetDisplayName: document.getElementById('target').value }, (resp) => {
                if (!resp.success) { addMeta(resp.error); return; }
                messagesDiv.innerHTML = '';
                document.getElementById('peer').textContent = 'with ' + resp.targetDisplayName;
                (resp.messages || []).forEach(addMessage);
            });
        }

        function sendMessage() {
            const input = document.getElementById('input');
            if (input.value.trim()) { send('chatMessage', input.value); input.value = ''; }
        }

        function notifyTyping() {
            send('typing', { isTyping: document.getElementById('input').value.length > 0 });
        }

        function addMessage(msg) {
            const el = document.createElement('div');
            el.className = msg.from === me ? 'own' : 'other';
            el.textContent = msg.from + ': ' + msg.text +
                (msg.seenCount > 1 ? ' (seen by ' + msg.seenCount + ')' : '');
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
            if (msg.from !== me) { send('seen', { messageId: msg.id }); }
        }

        function addMeta(text) {
            const el = document.createElement('div');
            el.className = 'meta';
            el.textContent = text;
            messagesDiv.appendChild(el);
        }

        connect();
    </script>
</body>
</html>`
