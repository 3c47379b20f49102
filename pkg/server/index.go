package server

// indexHTML is the single-page chat front end: a prompt box, a webcam
// preview with a capture button, and the response log.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Gemma3 Function Calling Interface</title>
  <style>
    body { background: black; color: white; font-family: monospace; margin: 0; padding: 1rem; display: flex; flex-direction: column; height: 100vh; box-sizing: border-box; gap: 1rem; }
    #chatHistory { flex: 1; overflow-y: auto; border: 1px solid #333; border-radius: 1rem; padding: 10px; }
    .row { display: flex; gap: 1rem; }
    textarea, button { background: #2a2a2a; color: #e0e0e0; border: 1px solid #444; border-radius: 1rem; padding: 8px; }
    textarea { flex: 1; }
    button { cursor: pointer; }
    button:hover { background: #555; }
    #webcamVideo { width: 240px; border-radius: 1rem; }
  </style>
</head>
<body>
  <div id="chatHistory"></div>
  <div class="row">
    <textarea id="chatInput" placeholder="Enter your message"></textarea>
    <div>
      <video id="webcamVideo" muted></video>
      <button onclick="captureWebcam()">Capture Frame</button>
    </div>
  </div>
  <button onclick="sendPrompt()">Send Prompt</button>
  <script>
    let sessionId = "";
    function appendChat(who, text) {
      const div = document.createElement("div");
      div.innerText = who + ": " + text;
      const history = document.getElementById("chatHistory");
      history.appendChild(div);
      history.scrollTop = history.scrollHeight;
    }
    async function sendPrompt() {
      const text = document.getElementById("chatInput").value;
      appendChat("User", text);
      const resp = await fetch("/send", {
        method: "POST",
        headers: {"Content-Type": "application/json"},
        body: JSON.stringify({session_id: sessionId, chat_text: text, image_data: window.capturedImage || ""})
      });
      const data = await resp.json();
      sessionId = data.session_id;
      appendChat("Model", data.error ? "[" + data.state + "] " + data.error : data.response);
      document.getElementById("chatInput").value = "";
      window.capturedImage = "";
    }
    function captureWebcam() {
      const video = document.getElementById("webcamVideo");
      const canvas = document.createElement("canvas");
      canvas.width = video.videoWidth;
      canvas.height = video.videoHeight;
      canvas.getContext("2d").drawImage(video, 0, 0, canvas.width, canvas.height);
      window.capturedImage = canvas.toDataURL("image/jpeg");
    }
    if (navigator.mediaDevices && navigator.mediaDevices.getUserMedia) {
      navigator.mediaDevices.getUserMedia({ video: true }).then(stream => {
        const video = document.getElementById("webcamVideo");
        video.srcObject = stream;
        video.play();
      }).catch(() => {});
    }
  </script>
</body>
</html>
`
