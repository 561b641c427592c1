package component

import "strings"

// ThankYouStyles is the default stylesheet of the thank-you button.
const ThankYouStyles = `.thank-you-button {
    display: inline-flex;
    align-items: center;
    justify-content: center;
    background: #ffdd57;
    color: #333;
    border: none;
    border-radius: 50px;
    width: 200px;
    height: 50px;
    font-size: 16px;
    cursor: pointer;
    gap: 8px;
    position: relative;
    overflow: hidden;
    white-space: nowrap;
    text-overflow: ellipsis;
}
.thank-you-button:active { background-color: #ffb400; transform: scale(0.95); }
.thank-you-content { display: flex; align-items: center; gap: 8px; }
.thank-you-emoji { font-size: 20px; }
.thank-you-label { font-size: 16px; }
.thank-you-float {
    font-size: 16px;
    color: red;
    position: absolute;
    animation: floatUp 1s ease-out forwards;
    pointer-events: none;
}
@keyframes floatUp {
    0% { opacity: 1; transform: translateY(0); }
    100% { opacity: 0; transform: translateY(-50px); }
}`

// MessageStyles is the default stylesheet of the message button.
const MessageStyles = `.thank-you-message-button {
    background: #007bff;
    color: white;
    border: none;
    border-radius: 5px;
    padding: 10px 15px;
    cursor: pointer;
    font-size: 16px;
}
.thank-you-message-textarea {
    margin-top: 10px;
    width: 100%;
    height: 80px;
    font-size: 14px;
    padding: 10px;
    border-radius: 5px;
    border: 1px solid #ccc;
}
.thank-you-message-send-button {
    background: #28a745;
    color: white;
    border: none;
    border-radius: 5px;
    padding: 10px 15px;
    margin-top: 10px;
    cursor: pointer;
    font-size: 16px;
}`

// Stylesheet appends the host's extra rules to the defaults.
func Stylesheet(defaults, extra string) string {
	extra = strings.TrimSpace(extra)
	if extra == "" {
		return defaults
	}
	return defaults + "\n" + extra
}
