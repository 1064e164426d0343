package service

import "fmt"

func whisperEmailTemplate(loopTitle, message, loopURL, appName string) (string, string) {
	subject := fmt.Sprintf("New whisper on \"%s\"", loopTitle)
	body := fmt.Sprintf(`Someone whispered about your loop "%s":

%s

View the loop:
%s

Best,
The %s Team`, loopTitle, message, loopURL, appName)

	return subject, body
}

func collaboratorEmailTemplate(inviter, loopTitle, loopURL, appName string) (string, string) {
	subject := fmt.Sprintf("%s added you to a loop on %s", inviter, appName)
	body := fmt.Sprintf(`Hi,

%s added you as a collaborator on "%s".

Open the loop:
%s

Best,
The %s Team`, inviter, loopTitle, loopURL, appName)

	return subject, body
}
