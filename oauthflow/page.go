package oauthflow

// ConfirmationPage closes the popup window that started the authorization.
const ConfirmationPage = `<html>
    <script>
        window.close();
    </script>
    <body style="font-family: Arial, sans-serif; text-align: center; padding: 20px;">
        <h2>HubSpot connected</h2>
        <p>You can close this window now.</p>
    </body>
</html>
`
